package trending

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the default ceiling on in-flight requests.
const DefaultConcurrency = 10

// Fetcher retrieves a page body. *Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Phase names a crawl stage.
type Phase string

const (
	PhaseList   Phase = "list"
	PhaseDetail Phase = "detail"
)

// Failure is the outcome of one page that could not be fetched or parsed.
type Failure struct {
	Phase Phase
	URL   string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Phase, f.URL, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Config configures the crawler.
type Config struct {
	BaseURL     string // Default: https://github.com.
	Concurrency int    // Default: DefaultConcurrency.
	// Strict aborts the crawl on the first failed page instead of
	// collecting failures and keeping the successes.
	Strict bool
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://github.com"
	}
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
}

// Request selects the trending lists to crawl.
type Request struct {
	Languages []string
	TimeRange models.TimeRange
}

// Result is the outcome of a crawl.
type Result struct {
	Records  []models.Record
	Failures []*Failure
	Pages    int // list pages requested
	Listed   int // summaries before dedup
}

// Crawler lists trending pages, then enriches each unique repository from
// its detail page.
type Crawler struct {
	fetcher Fetcher
	details *DetailParser
	config  Config
	logger  *slog.Logger
}

func New(f Fetcher, cfg Config, logger *slog.Logger) *Crawler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		fetcher: f,
		details: NewDetailParser(),
		config:  cfg,
		logger:  logger,
	}
}

// Crawl runs both phases. Phase 2 starts only after every list page has
// resolved and been deduplicated.
func (c *Crawler) Crawl(ctx context.Context, req Request) (*Result, error) {
	if req.TimeRange == "" {
		req.TimeRange = models.Daily
	}
	pages := ListPages(c.config.BaseURL, req.Languages, req.TimeRange)
	res := &Result{Pages: len(pages)}

	summaries, failures, err := c.listPhase(ctx, pages)
	res.Failures = append(res.Failures, failures...)
	if err != nil {
		return res, err
	}
	res.Listed = len(summaries)
	unique := Dedupe(summaries)
	c.logger.Info("listing complete",
		"pages", len(pages), "failed", len(failures),
		"listed", len(summaries), "unique", len(unique))

	records, failures, err := c.detailPhase(ctx, unique)
	res.Failures = append(res.Failures, failures...)
	if err != nil {
		return res, err
	}
	res.Records = records
	c.logger.Info("enrichment complete", "repos", len(records), "failed", len(failures))
	return res, nil
}

func (c *Crawler) listPhase(ctx context.Context, pages []ListPage) ([]models.Summary, []*Failure, error) {
	// Indexed by page so flattening follows declaration order, not arrival.
	perPage := make([][]models.Summary, len(pages))

	failures, err := c.batch(ctx, len(pages), func(ctx context.Context, i int) *Failure {
		body, err := c.fetcher.Get(ctx, pages[i].URL)
		if err != nil {
			return &Failure{Phase: PhaseList, URL: pages[i].URL, Err: err}
		}
		rows, err := ParseListing(body)
		if err != nil {
			return &Failure{Phase: PhaseList, URL: pages[i].URL, Err: err}
		}
		perPage[i] = rows
		return nil
	})
	if err != nil {
		return nil, failures, err
	}

	var all []models.Summary
	for _, rows := range perPage {
		all = append(all, rows...)
	}
	return all, failures, nil
}

func (c *Crawler) detailPhase(ctx context.Context, unique []models.Summary) ([]models.Record, []*Failure, error) {
	records := make([]models.Record, len(unique))
	var done atomic.Int64

	failures, err := c.batch(ctx, len(unique), func(ctx context.Context, i int) *Failure {
		s := unique[i]
		url := RepoURL(c.config.BaseURL, s.Identity)

		// A failed detail keeps the listing data.
		records[i] = models.NewRecord(s, models.Detail{}, false)

		body, err := c.fetcher.Get(ctx, url)
		if err != nil {
			return &Failure{Phase: PhaseDetail, URL: url, Err: err}
		}
		d, err := c.details.Parse(body)
		if err != nil {
			return &Failure{Phase: PhaseDetail, URL: url, Err: err}
		}
		records[i] = models.NewRecord(s, d, true)

		if n := done.Add(1); n%25 == 0 {
			c.logger.Debug("enriched", "done", n, "total", len(unique))
		}
		return nil
	})
	if err != nil {
		return nil, failures, err
	}
	return records, failures, nil
}

// batch runs n tasks under a counting gate shared by the whole phase and
// waits for all of them. Failures come back in task order. In strict mode
// the first failure cancels the remaining tasks and is returned as err.
func (c *Crawler) batch(ctx context.Context, n int, task func(context.Context, int) *Failure) ([]*Failure, error) {
	gate := semaphore.NewWeighted(int64(c.config.Concurrency))
	outcomes := make([]*Failure, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gate.Acquire(gctx, 1); err != nil {
				return err
			}
			f := func() *Failure {
				defer gate.Release(1)
				return task(gctx, i)
			}()
			if f == nil {
				return nil
			}
			outcomes[i] = f
			c.logger.Warn("page failed", "phase", f.Phase, "url", f.URL, "err", f.Err)
			if c.config.Strict {
				return f
			}
			return nil
		})
	}
	waitErr := g.Wait()

	var failures []*Failure
	for _, f := range outcomes {
		if f != nil {
			failures = append(failures, f)
		}
	}
	if waitErr != nil {
		return failures, fmt.Errorf("crawl aborted: %w", waitErr)
	}
	if err := ctx.Err(); err != nil {
		return failures, fmt.Errorf("crawl aborted: %w", err)
	}
	return failures, nil
}
