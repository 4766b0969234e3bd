package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kevinmichaelchen/repo-pulse/internal/config"
	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	"github.com/kevinmichaelchen/repo-pulse/internal/snapshot"
)

const trendingPage = `<html><body>
<article class="Box-row">
  <h2><a href="/acme/infer">acme / infer</a></h2>
  <p>high throughput llm inference server</p>
  <span itemprop="programmingLanguage">Python</span>
  <a href="/acme/infer/stargazers">12,000</a>
  <a href="/acme/infer/forks">800</a>
  <span class="d-inline-block float-sm-right">450 stars today</span>
</article>
<article class="Box-row">
  <h2><a href="/solo/misc">solo / misc</a></h2>
  <p>weekend notes</p>
  <a href="/solo/misc/stargazers">3</a>
</article>
</body></html>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeGitHub(t *testing.T, failLists bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/trending"):
			if failLists && r.URL.Path != "/trending" {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(trendingPage))
		case r.URL.Path == "/acme/infer":
			_, _ = w.Write([]byte(`<a class="topic-tag" href="/topics/llm">llm</a>
<a href="/acme/infer/watchers">321 watching</a>`))
		case r.URL.Path == "/solo/misc":
			_, _ = w.Write([]byte(`<html></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		TimeRange:       models.Daily,
		Languages:       []string{"python"},
		Concurrency:     2,
		ConfidenceFloor: 0.10,
		SnapshotPath:    filepath.Join(dir, "trending.json"),
		AnalysisPath:    filepath.Join(dir, "topics.json"),
		BaseURL:         baseURL,
		RequestTimeout:  5 * time.Second,
		TopTopics:       5,
		TopRepos:        5,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	// WHAT: one classifiable repo lands in LLM_Infra, the other is Unknown,
	// and both the snapshot and the analysis document are written.
	srv := fakeGitHub(t, false)
	defer srv.Close()
	cfg := testConfig(t, srv.URL)

	var out bytes.Buffer
	a, err := Run(context.Background(), cfg, Options{Out: &out, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	records, err := snapshot.Read(cfg.SnapshotPath)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(records) != 2 || records[0].FullName() != "acme/infer" {
		t.Fatalf("snapshot records = %+v", records)
	}
	if records[0].Watchers != 321 || records[0].Topics[0] != "llm" {
		t.Errorf("detail not merged: %+v", records[0])
	}

	llm := a.Buckets["LLM_Infra"]
	if llm == nil || llm.RepoCount != 1 || llm.Heat <= 0 {
		t.Fatalf("LLM_Infra bucket = %+v", llm)
	}
	if a.Unknown != 1 {
		t.Errorf("unknown = %d, want 1", a.Unknown)
	}

	doc, err := snapshot.ReadAnalysis(cfg.AnalysisPath)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if doc.RunID != a.Doc.RunID || doc.Topics["LLM_Infra"].RepoCount != 1 {
		t.Errorf("analysis doc = %+v", doc)
	}

	if !strings.Contains(out.String(), "LLM_Infra") || !strings.Contains(out.String(), "acme/infer") {
		t.Errorf("report:\n%s", out.String())
	}
}

func TestRun_StrictFailureWritesNothing(t *testing.T) {
	srv := fakeGitHub(t, true)
	defer srv.Close()
	cfg := testConfig(t, srv.URL)
	cfg.Strict = true

	if _, err := Run(context.Background(), cfg, Options{Out: io.Discard, Logger: quietLogger()}); err == nil {
		t.Fatal("expected strict run to fail")
	}
	if _, err := os.Stat(cfg.SnapshotPath); !os.IsNotExist(err) {
		t.Errorf("snapshot should not exist, stat err = %v", err)
	}
}

func TestRun_PartialFailureReported(t *testing.T) {
	srv := fakeGitHub(t, true)
	defer srv.Close()
	cfg := testConfig(t, srv.URL)

	var out bytes.Buffer
	if _, err := Run(context.Background(), cfg, Options{Out: &out, Logger: quietLogger()}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "1 page(s) failed") {
		t.Errorf("report should mention the failed page:\n%s", out.String())
	}
	if _, err := snapshot.Read(cfg.SnapshotPath); err != nil {
		t.Errorf("snapshot: %v", err)
	}
}

func TestAnalyze_FromSnapshot(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.AnalysisPath = ""
	records := []models.Record{
		models.NewRecord(models.Summary{
			Identity:    models.Identity{Author: "db", Name: "tikv"},
			Description: "distributed key value database with sql",
			Stars:       500,
			AddedStars:  20,
		}, models.Detail{}, true),
	}
	a, err := Analyze(context.Background(), cfg, records, quietLogger())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(a.Classified) != 1 || a.Classified[0].Topic != "Database_Storage" {
		t.Errorf("classified = %+v", a.Classified)
	}
	if len(a.Ranked) != 1 || a.Ranked[0].Topic != "Database_Storage" {
		t.Errorf("ranked = %+v", a.Ranked)
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Analyze(ctx, testConfig(t, ""), nil, quietLogger()); err == nil {
		t.Error("expected context error")
	}
}

func TestPublish_RequiresURL(t *testing.T) {
	cfg := testConfig(t, "")
	a, err := Analyze(context.Background(), cfg, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := Publish(context.Background(), cfg, a, quietLogger()); err == nil {
		t.Error("expected error without a SurrealDB URL")
	}
}
