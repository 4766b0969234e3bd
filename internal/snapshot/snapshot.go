package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kevinmichaelchen/repo-pulse/internal/models"
)

// Write replaces the snapshot at path with records as indented JSON.
// An interrupted write leaves the previous snapshot in place.
func Write(path string, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	return writeJSON(path, records)
}

// Read loads a snapshot written by Write.
func Read(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	for i := range records {
		if records[i].Topics == nil {
			records[i].Topics = []string{}
		}
	}
	return records, nil
}

// TopicEntry is one bucket of the analysis document.
type TopicEntry struct {
	Heat      float64             `json:"heat"`
	RepoCount int                 `json:"repo_count"`
	AvgScore  float64             `json:"avg_score"`
	Repos     []models.Classified `json:"repos"`
}

// Analysis is the classified, aggregated view of one run.
type Analysis struct {
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	TimeRange   models.TimeRange      `json:"time_range"`
	Unknown     int                   `json:"unknown"`
	Topics      map[string]TopicEntry `json:"topics"`
}

// NewAnalysis stamps buckets with a fresh run id.
func NewAnalysis(tr models.TimeRange, buckets map[string]*models.Bucket, unknown int) *Analysis {
	a := &Analysis{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		TimeRange:   tr,
		Unknown:     unknown,
		Topics:      make(map[string]TopicEntry, len(buckets)),
	}
	for label, b := range buckets {
		a.Topics[label] = TopicEntry{
			Heat:      b.Heat,
			RepoCount: b.RepoCount,
			AvgScore:  b.AvgScore,
			Repos:     b.Repos,
		}
	}
	return a
}

// Buckets converts the document back into aggregator buckets.
func (a *Analysis) Buckets() map[string]*models.Bucket {
	out := make(map[string]*models.Bucket, len(a.Topics))
	for label, e := range a.Topics {
		out[label] = &models.Bucket{
			Topic:     label,
			Heat:      e.Heat,
			RepoCount: e.RepoCount,
			AvgScore:  e.AvgScore,
			Repos:     e.Repos,
		}
	}
	return out
}

func WriteAnalysis(path string, a *Analysis) error {
	return writeJSON(path, a)
}

func ReadAnalysis(path string) (*Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading analysis: %w", err)
	}
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding analysis %s: %w", path, err)
	}
	if a.Topics == nil {
		a.Topics = map[string]TopicEntry{}
	}
	return &a, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
