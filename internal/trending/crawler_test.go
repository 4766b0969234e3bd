package trending

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevinmichaelchen/repo-pulse/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rowHTML(author, name string, stars int) string {
	return fmt.Sprintf(`<article class="Box-row"><h2><a href="/%s/%s">%s / %s</a></h2>
<p>desc of %s</p><div><a href="/%s/%s/stargazers">%d</a></div></article>`,
		author, name, author, name, name, author, name, stars)
}

func listHTML(rows ...string) string {
	return "<html><body>" + strings.Join(rows, "\n") + "</body></html>"
}

func TestClient_Headers(t *testing.T) {
	// WHAT: Client sends a browser User-Agent and the session cookie.
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{SessionCookie: "user_session=abc"})
	if err != nil {
		t.Fatal(err)
	}
	body, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Errorf("user agent = %q", gotUA)
	}
	if gotCookie != "user_session=abc" {
		t.Errorf("cookie = %q", gotCookie)
	}
}

func TestClient_Non2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Get(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", fe.StatusCode)
	}
}

func TestClient_BadProxy(t *testing.T) {
	if _, err := NewClient(ClientConfig{ProxyURL: "://nope"}); err == nil {
		t.Error("expected error for invalid proxy URL")
	}
}

// fakeSite serves trending lists and detail pages, tracking concurrency.
type fakeSite struct {
	mu         sync.Mutex
	lists      map[string]string // path -> html
	details    map[string]string // "/author/name" -> html
	fail       map[string]int    // path -> status
	delay      time.Duration
	slow       map[string]time.Duration // path -> extra delay
	inFlight   atomic.Int64
	peak       atomic.Int64
	detailHits atomic.Int64
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay + s.slow[r.URL.Path])

	s.mu.Lock()
	defer s.mu.Unlock()
	if code, ok := s.fail[r.URL.Path]; ok {
		w.WriteHeader(code)
		return
	}
	if page, ok := s.lists[r.URL.Path]; ok {
		_, _ = w.Write([]byte(page))
		return
	}
	if page, ok := s.details[r.URL.Path]; ok {
		s.detailHits.Add(1)
		_, _ = w.Write([]byte(page))
		return
	}
	http.NotFound(w, r)
}

func newCrawler(t *testing.T, srv *httptest.Server, cfg Config) *Crawler {
	t.Helper()
	client, err := NewClient(ClientConfig{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	cfg.BaseURL = srv.URL
	return New(client, cfg, quietLogger())
}

func TestCrawl_DedupOrderAndEnrichment(t *testing.T) {
	// WHAT: Duplicates across lists keep the first declared page's copy even
	// when that page answers last, and every unique repo gets exactly one
	// detail fetch.
	site := &fakeSite{
		slow: map[string]time.Duration{"/trending": 150 * time.Millisecond},
		lists: map[string]string{
			"/trending":        listHTML(rowHTML("acme", "infer", 12000), rowHTML("a", "one", 1)),
			"/trending/python": listHTML(rowHTML("acme", "infer", 12050), rowHTML("b", "two", 2)),
			"/trending/go":     listHTML(rowHTML("c", "three", 3)),
		},
		details: map[string]string{
			"/acme/infer": `<a href="/acme/infer/watchers">99 watching</a>`,
			"/a/one":      `<html></html>`,
			"/b/two":      `<html></html>`,
			"/c/three":    `<html></html>`,
		},
	}
	srv := httptest.NewServer(site)
	defer srv.Close()

	res, err := newCrawler(t, srv, Config{Concurrency: 3}).Crawl(context.Background(), Request{
		Languages: []string{"python", "go"},
		TimeRange: models.Daily,
	})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("failures: %v", res.Failures)
	}
	if res.Pages != 3 || res.Listed != 5 {
		t.Errorf("pages=%d listed=%d, want 3 and 5", res.Pages, res.Listed)
	}

	var names []string
	for _, r := range res.Records {
		names = append(names, r.FullName())
	}
	want := "acme/infer a/one b/two c/three"
	if got := strings.Join(names, " "); got != want {
		t.Errorf("order = %q, want %q", got, want)
	}
	if res.Records[0].Stars != 12000 {
		t.Errorf("stars = %d, want first-seen 12000", res.Records[0].Stars)
	}
	if res.Records[0].Watchers != 99 || !res.Records[0].DetailFetched {
		t.Errorf("detail not merged: %+v", res.Records[0])
	}
	if hits := site.detailHits.Load(); hits != 4 {
		t.Errorf("detail hits = %d, want 4", hits)
	}
}

func TestCrawl_ConcurrencyCeiling(t *testing.T) {
	// WHAT: No more than Concurrency requests are in flight at once.
	site := &fakeSite{
		lists:   map[string]string{},
		details: map[string]string{},
		delay:   20 * time.Millisecond,
	}
	var langs []string
	for i := 0; i < 8; i++ {
		lang := fmt.Sprintf("lang%d", i)
		langs = append(langs, lang)
		site.lists["/trending/"+lang] = listHTML(rowHTML("o", lang, i))
		site.details["/o/"+lang] = "<html></html>"
	}
	site.lists["/trending"] = listHTML()
	srv := httptest.NewServer(site)
	defer srv.Close()

	res, err := newCrawler(t, srv, Config{Concurrency: 3}).Crawl(context.Background(), Request{Languages: langs})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(res.Records) != 8 {
		t.Errorf("records = %d, want 8", len(res.Records))
	}
	if peak := site.peak.Load(); peak > 3 {
		t.Errorf("peak in-flight = %d, want <= 3", peak)
	}
}

func TestCrawl_PartialFailures(t *testing.T) {
	// WHAT: A failed list page and a failed detail page are reported while
	// the rest of the batch survives.
	site := &fakeSite{
		lists: map[string]string{
			"/trending":    listHTML(rowHTML("a", "one", 10), rowHTML("b", "gone", 20)),
			"/trending/go": listHTML(rowHTML("c", "never", 1)),
		},
		details: map[string]string{"/a/one": "<html></html>"},
		fail:    map[string]int{"/trending/go": http.StatusBadGateway, "/b/gone": http.StatusNotFound},
	}
	srv := httptest.NewServer(site)
	defer srv.Close()

	res, err := newCrawler(t, srv, Config{}).Crawl(context.Background(), Request{Languages: []string{"go"}})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("failures = %v, want 2", res.Failures)
	}
	if res.Failures[0].Phase != PhaseList || res.Failures[1].Phase != PhaseDetail {
		t.Errorf("phases = %s, %s", res.Failures[0].Phase, res.Failures[1].Phase)
	}
	var fe *FetchError
	if !errors.As(res.Failures[1], &fe) || fe.StatusCode != http.StatusNotFound {
		t.Errorf("detail failure = %v, want 404 FetchError", res.Failures[1])
	}

	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Records))
	}
	gone := res.Records[1]
	if gone.FullName() != "b/gone" || gone.DetailFetched || gone.Stars != 20 {
		t.Errorf("failed detail record = %+v", gone)
	}
}

func TestCrawl_StrictAborts(t *testing.T) {
	site := &fakeSite{
		lists: map[string]string{"/trending": listHTML(rowHTML("a", "one", 1))},
		fail:  map[string]int{"/trending/go": http.StatusInternalServerError},
	}
	srv := httptest.NewServer(site)
	defer srv.Close()

	res, err := newCrawler(t, srv, Config{Strict: true}).Crawl(context.Background(), Request{Languages: []string{"go"}})
	if err == nil {
		t.Fatal("expected strict crawl to fail")
	}
	var f *Failure
	if !errors.As(err, &f) || f.Phase != PhaseList {
		t.Errorf("err = %v, want list Failure", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("records = %d, want none", len(res.Records))
	}
	if site.detailHits.Load() != 0 {
		t.Error("detail phase ran after a strict list failure")
	}
}

func TestCrawl_CancelledContext(t *testing.T) {
	site := &fakeSite{lists: map[string]string{"/trending": listHTML()}}
	srv := httptest.NewServer(site)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newCrawler(t, srv, Config{}).Crawl(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
