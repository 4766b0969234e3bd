package trending

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxReadmeLen caps the README text kept per record.
const maxReadmeLen = 3000

var commitCountJSON = regexp.MustCompile(`"commitCount"\s*:\s*"?([\d,]+)"?`)

// detailField extracts one named field from a detail page. A field that is
// absent leaves its zero value.
type detailField struct {
	name    string
	extract func(p *DetailParser, doc *html.Node, raw []byte, d *models.Detail)
}

var detailSchema = []detailField{
	{"watchers", func(_ *DetailParser, doc *html.Node, _ []byte, d *models.Detail) {
		d.Watchers = ParseCount(text(findFirst(doc, hrefSuffix("/watchers"))))
	}},
	{"issues", func(_ *DetailParser, doc *html.Node, _ []byte, d *models.Detail) {
		d.Issues = tabCount(doc, "issues-repo-tab-count")
	}},
	{"pull_requests", func(_ *DetailParser, doc *html.Node, _ []byte, d *models.Detail) {
		d.PullRequests = tabCount(doc, "pull-requests-repo-tab-count")
	}},
	{"commits", func(_ *DetailParser, doc *html.Node, raw []byte, d *models.Detail) {
		d.Commits = commitCount(doc, raw)
	}},
	{"topics", func(_ *DetailParser, doc *html.Node, _ []byte, d *models.Detail) {
		d.Topics = topicTags(doc)
	}},
	{"readme", func(p *DetailParser, doc *html.Node, _ []byte, d *models.Detail) {
		d.Readme = p.readme(doc)
	}},
}

// DetailParser extracts Detail fields from repository pages. It is safe
// for concurrent use.
type DetailParser struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

func NewDetailParser() *DetailParser {
	return &DetailParser{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Parse runs every field of the schema independently over page.
func (p *DetailParser) Parse(page []byte) (models.Detail, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return models.Detail{}, fmt.Errorf("parsing detail page: %w", err)
	}
	var d models.Detail
	for _, f := range detailSchema {
		f.extract(p, doc, page, &d)
	}
	if d.Topics == nil {
		d.Topics = []string{}
	}
	return d, nil
}

// tabCount reads a repository tab counter, preferring the exact title
// attribute over the abbreviated label.
func tabCount(doc *html.Node, id string) int {
	n := findFirst(doc, attrIs("id", id))
	if n == nil {
		return 0
	}
	if v := ParseCount(attr(n, "title")); v > 0 {
		return v
	}
	return ParseCount(text(n))
}

func commitCount(doc *html.Node, raw []byte) int {
	links := findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.A && strings.Contains(attr(n, "href"), "/commits")
	})
	for _, a := range links {
		if t := text(a); strings.Contains(strings.ToLower(t), "commit") {
			if v := ParseCount(t); v > 0 {
				return v
			}
		}
	}
	if m := commitCountJSON.FindSubmatch(raw); m != nil {
		return ParseCount(string(m[1]))
	}
	return 0
}

func topicTags(doc *html.Node) []string {
	seen := make(map[string]bool)
	var topics []string
	for _, n := range findAll(doc, func(n *html.Node) bool { return hasClass(n, "topic-tag") }) {
		t := text(n)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		topics = append(topics, t)
	}
	return topics
}

func (p *DetailParser) readme(doc *html.Node) string {
	n := findFirst(doc, tagClass(atom.Article, "markdown-body"))
	if n == nil {
		return ""
	}
	fallback := text(n)
	clean := p.policy.Sanitize(renderInner(n))
	out, err := p.md.ConvertString(clean)
	if err != nil || strings.TrimSpace(out) == "" {
		out = fallback
	}
	return truncate(strings.TrimSpace(out), maxReadmeLen)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
