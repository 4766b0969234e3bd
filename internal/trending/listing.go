package trending

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultLanguages are the language filters crawled when none are given.
var DefaultLanguages = []string{"python", "go", "c", "c++", "javascript", "typescript"}

// ListPage is one trending list to crawl.
type ListPage struct {
	Language string // empty for the unfiltered page
	URL      string
}

// ListPages returns the unfiltered trending page followed by one page per
// language, in the order given.
func ListPages(baseURL string, languages []string, since models.TimeRange) []ListPage {
	base := strings.TrimSuffix(baseURL, "/")
	q := url.Values{"since": {string(since)}}.Encode()

	pages := []ListPage{{URL: base + "/trending?" + q}}
	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		pages = append(pages, ListPage{
			Language: lang,
			URL:      base + "/trending/" + url.PathEscape(strings.ToLower(lang)) + "?" + q,
		})
	}
	return pages
}

// RepoURL is the detail page of a repository.
func RepoURL(baseURL string, id models.Identity) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + url.PathEscape(id.Author) + "/" + url.PathEscape(id.Name)
}

// ParseListing extracts one Summary per trending row. Missing fields fall
// back to empty or zero; rows without an identity are skipped.
func ParseListing(page []byte) ([]models.Summary, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing trending page: %w", err)
	}

	rows := findAll(doc, tagClass(atom.Article, "Box-row"))
	out := make([]models.Summary, 0, len(rows))
	for _, row := range rows {
		s, ok := parseRow(row)
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func parseRow(row *html.Node) (models.Summary, bool) {
	id := rowIdentity(row)
	if id.IsZero() {
		return models.Summary{}, false
	}

	s := models.Summary{Identity: id}
	if p := findFirst(row, tagIs(atom.P)); p != nil {
		s.Description = text(p)
	}
	if lang := findFirst(row, attrIs("itemprop", "programmingLanguage")); lang != nil {
		s.Language = text(lang)
	}
	s.Stars = ParseCount(text(findFirst(row, hrefSuffix("/stargazers"))))
	s.Forks = ParseCount(text(findFirst(row, hrefSuffix("/forks"))))
	if added := findFirst(row, tagClass(atom.Span, "float-sm-right")); added != nil {
		s.AddedStars = ParseCount(text(added))
	}
	return s, true
}

// rowIdentity prefers the heading link's href and falls back to its
// "author / name" text.
func rowIdentity(row *html.Node) models.Identity {
	h2 := findFirst(row, tagIs(atom.H2))
	link := findFirst(h2, tagIs(atom.A))
	if link == nil {
		return models.Identity{}
	}

	parts := strings.Split(strings.Trim(attr(link, "href"), "/"), "/")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return models.Identity{Author: parts[0], Name: parts[1]}
	}

	author, name, ok := strings.Cut(text(link), "/")
	if !ok {
		return models.Identity{}
	}
	return models.Identity{
		Author: strings.TrimSpace(author),
		Name:   strings.ReplaceAll(strings.TrimSpace(name), " ", ""),
	}
}
