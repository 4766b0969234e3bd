package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kevinmichaelchen/repo-pulse/internal/models"
)

func sampleRecords() []models.Record {
	return []models.Record{
		models.NewRecord(models.Summary{
			Identity:    models.Identity{Author: "acme", Name: "infer"},
			Description: "high throughput llm inference server",
			Language:    "Python",
			Stars:       12000,
			Forks:       800,
			AddedStars:  450,
		}, models.Detail{Watchers: 321, Topics: []string{"llm"}, Readme: "# Infer"}, true),
		models.NewRecord(models.Summary{
			Identity: models.Identity{Author: "solo", Name: "bare"},
			Stars:    7,
		}, models.Detail{}, false),
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trending.json")
	want := sampleRecords()
	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Read =\n%+v\nwant\n%+v", got, want)
	}
}

func TestWrite_FieldNamesAndIndent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trending.json")
	if err := Write(path, sampleRecords()[:1]); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "[\n  {") {
		t.Errorf("snapshot not indented: %q", data[:10])
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{
		"author", "name", "description", "language", "stars", "forks", "added_stars",
		"watchers", "issues", "pull_requests", "commits", "topics", "readme",
	} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("missing field %q", key)
		}
	}
}

func TestWrite_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trending.json")
	if err := Write(path, sampleRecords()); err != nil {
		t.Fatal(err)
	}
	if err := Write(path, nil); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records after overwrite, want 0", len(got))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWrite_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "trending.json")
	if err := Write(path, sampleRecords()); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Read(filepath.Join(dir, "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(bad); err == nil {
		t.Error("expected error for malformed snapshot")
	}
}

func TestAnalysisRoundTrip(t *testing.T) {
	rec := sampleRecords()[0]
	buckets := map[string]*models.Bucket{
		"LLM_Infra": {
			Topic:     "LLM_Infra",
			Heat:      4.2,
			RepoCount: 1,
			AvgScore:  0.27,
			Repos: []models.Classified{{
				Record: rec,
				Topic:  "LLM_Infra",
				Scores: models.TopicScores{"LLM_Infra": 0.27, "FinTech": 0},
			}},
		},
	}
	a := NewAnalysis(models.Weekly, buckets, 3)
	if _, err := uuid.Parse(a.RunID); err != nil {
		t.Errorf("run id %q: %v", a.RunID, err)
	}

	path := filepath.Join(t.TempDir(), "topics.json")
	if err := WriteAnalysis(path, a); err != nil {
		t.Fatal(err)
	}
	got, err := ReadAnalysis(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != a.RunID || got.TimeRange != models.Weekly || got.Unknown != 3 {
		t.Errorf("header = %+v", got)
	}
	back := got.Buckets()["LLM_Infra"]
	if back == nil || back.Topic != "LLM_Infra" || back.RepoCount != 1 || back.Heat != 4.2 {
		t.Fatalf("bucket = %+v", back)
	}
	if back.Repos[0].Score("LLM_Infra") != 0.27 {
		t.Errorf("scores lost: %+v", back.Repos[0].Scores)
	}
}
