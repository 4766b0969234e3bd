package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kevinmichaelchen/repo-pulse/internal/config"
	"github.com/kevinmichaelchen/repo-pulse/internal/heat"
	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	"github.com/kevinmichaelchen/repo-pulse/internal/report"
	"github.com/kevinmichaelchen/repo-pulse/internal/snapshot"
	"github.com/kevinmichaelchen/repo-pulse/internal/surrealdb"
	"github.com/kevinmichaelchen/repo-pulse/internal/topic"
	"github.com/kevinmichaelchen/repo-pulse/internal/trending"
)

type Options struct {
	Publish bool
	Out     io.Writer    // report destination; default os.Stdout
	Logger  *slog.Logger // default slog.Default()
}

func (o *Options) defaults() {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Analysis is the classified and aggregated form of a snapshot.
type Analysis struct {
	Classified []models.Classified
	Buckets    map[string]*models.Bucket
	Ranked     []*models.Bucket
	Unknown    int
	Doc        *snapshot.Analysis
}

// Run crawls, snapshots, classifies, aggregates, optionally publishes, and
// writes the topic report.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Analysis, error) {
	opts.defaults()

	// Step 1: Crawl and snapshot
	res, err := Crawl(ctx, cfg, opts.Logger)
	if err != nil {
		return nil, err
	}

	// Step 2: Classify and aggregate
	a, err := Analyze(ctx, cfg, res.Records, opts.Logger)
	if err != nil {
		return nil, err
	}

	// Step 3: Publish
	if opts.Publish {
		if err := Publish(ctx, cfg, a, opts.Logger); err != nil {
			return a, err
		}
	}

	// Step 4: Report
	report.Topics(opts.Out, a.Buckets, report.Options{
		TimeRange: cfg.TimeRange,
		TopTopics: cfg.TopTopics,
		TopRepos:  cfg.TopRepos,
	})
	if n := len(res.Failures); n > 0 {
		fmt.Fprintf(opts.Out, "\n%d page(s) failed; see log for details\n", n)
	}
	return a, nil
}

// Crawl fetches the configured trending lists and overwrites the snapshot.
// A strict-mode failure returns before anything is written.
func Crawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*trending.Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := trending.NewClient(trending.ClientConfig{
		Timeout:       cfg.RequestTimeout,
		SessionCookie: cfg.SessionCookie,
		ProxyURL:      cfg.ProxyURL,
	})
	if err != nil {
		return nil, err
	}

	crawler := trending.New(client, trending.Config{
		BaseURL:     cfg.BaseURL,
		Concurrency: cfg.Concurrency,
		Strict:      cfg.Strict,
	}, logger)

	logger.Info("crawling trending", "range", cfg.TimeRange, "languages", cfg.Languages)
	res, err := crawler.Crawl(ctx, trending.Request{
		Languages: cfg.Languages,
		TimeRange: cfg.TimeRange,
	})
	if err != nil {
		return res, err
	}

	if err := snapshot.Write(cfg.SnapshotPath, res.Records); err != nil {
		return res, err
	}
	logger.Info("snapshot written", "path", cfg.SnapshotPath, "repos", len(res.Records), "failed", len(res.Failures))
	return res, nil
}

// Analyze classifies records and buckets them by topic. When AnalysisPath
// is set the result is also written there.
func Analyze(ctx context.Context, cfg *config.Config, records []models.Record, logger *slog.Logger) (*Analysis, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	classifier, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}

	classified := classifier.ClassifyAll(records, cfg.Concurrency)
	unknown := 0
	for _, c := range classified {
		if c.Topic == models.Unknown {
			unknown++
		}
	}

	buckets := heat.Aggregate(classified)
	a := &Analysis{
		Classified: classified,
		Buckets:    buckets,
		Ranked:     heat.Rank(buckets),
		Unknown:    unknown,
		Doc:        snapshot.NewAnalysis(cfg.TimeRange, buckets, unknown),
	}
	logger.Info("classified", "repos", len(classified), "topics", len(buckets), "unknown", unknown)

	if cfg.AnalysisPath != "" {
		if err := snapshot.WriteAnalysis(cfg.AnalysisPath, a.Doc); err != nil {
			return a, err
		}
		logger.Info("analysis written", "path", cfg.AnalysisPath, "run_id", a.Doc.RunID)
	}
	return a, nil
}

// NewClassifier builds the default-corpus classifier at the configured floor.
func NewClassifier(cfg *config.Config) (*topic.Classifier, error) {
	space, err := topic.NewVectorSpace(topic.DefaultCorpus())
	if err != nil {
		return nil, fmt.Errorf("building topic model: %w", err)
	}
	return topic.NewClassifier(space, cfg.ConfidenceFloor)
}

// Publish replaces the SurrealDB tables with a.
func Publish(ctx context.Context, cfg *config.Config, a *Analysis, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Surreal.Enabled() {
		return fmt.Errorf("publishing: no SurrealDB URL configured")
	}

	logger.Info("connecting to SurrealDB", "url", cfg.Surreal.URL)
	db, err := surrealdb.NewClient(ctx, cfg.Surreal)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(ctx) }()

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	if err := db.Publish(ctx, surrealdb.Run{
		ID:        a.Doc.RunID,
		TimeRange: cfg.TimeRange,
		Records:   a.Classified,
		Ranked:    a.Ranked,
	}); err != nil {
		return err
	}
	logger.Info("published", "run_id", a.Doc.RunID, "repos", len(a.Classified), "topics", len(a.Ranked))
	return nil
}
