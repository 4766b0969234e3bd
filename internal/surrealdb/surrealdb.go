package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kevinmichaelchen/repo-pulse/internal/config"
	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	sdk "github.com/surrealdb/surrealdb.go"
)

type Client struct {
	db *sdk.DB
}

func NewClient(ctx context.Context, cfg config.SurrealConfig) (*Client, error) {
	db, err := sdk.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, sdk.Auth{
		Namespace: cfg.NS,
		Database:  cfg.DB,
		Username:  cfg.User,
		Password:  cfg.Pass,
	}); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("signing in: %w", err)
	}

	if err := db.Use(ctx, cfg.NS, cfg.DB); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("selecting ns/db: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}

const schema = `
DEFINE TABLE IF NOT EXISTS repo SCHEMAFULL;

DEFINE FIELD IF NOT EXISTS run_id         ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS author         ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS name           ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS full_name      ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS description    ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS language       ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS stars          ON TABLE repo TYPE int;
DEFINE FIELD IF NOT EXISTS forks          ON TABLE repo TYPE int;
DEFINE FIELD IF NOT EXISTS added_stars    ON TABLE repo TYPE int;
DEFINE FIELD IF NOT EXISTS watchers       ON TABLE repo TYPE int;
DEFINE FIELD IF NOT EXISTS issues         ON TABLE repo TYPE int;
DEFINE FIELD IF NOT EXISTS pull_requests  ON TABLE repo TYPE int;
DEFINE FIELD IF NOT EXISTS commits        ON TABLE repo TYPE int;
DEFINE FIELD IF NOT EXISTS topics         ON TABLE repo TYPE array<string>;
DEFINE FIELD IF NOT EXISTS readme         ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS detail_fetched ON TABLE repo TYPE bool;
DEFINE FIELD IF NOT EXISTS topic          ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS score          ON TABLE repo TYPE float;
DEFINE FIELD IF NOT EXISTS topic_scores   ON TABLE repo FLEXIBLE TYPE object;
DEFINE FIELD IF NOT EXISTS published_at   ON TABLE repo TYPE datetime;

DEFINE INDEX IF NOT EXISTS idx_full_name ON TABLE repo FIELDS full_name UNIQUE;
DEFINE INDEX IF NOT EXISTS idx_topic     ON TABLE repo FIELDS topic;

DEFINE TABLE IF NOT EXISTS topic SCHEMAFULL;

DEFINE FIELD IF NOT EXISTS run_id       ON TABLE topic TYPE string;
DEFINE FIELD IF NOT EXISTS label        ON TABLE topic TYPE string;
DEFINE FIELD IF NOT EXISTS rank         ON TABLE topic TYPE int;
DEFINE FIELD IF NOT EXISTS heat         ON TABLE topic TYPE float;
DEFINE FIELD IF NOT EXISTS repo_count   ON TABLE topic TYPE int;
DEFINE FIELD IF NOT EXISTS avg_score    ON TABLE topic TYPE float;
DEFINE FIELD IF NOT EXISTS time_range   ON TABLE topic TYPE string;
DEFINE FIELD IF NOT EXISTS published_at ON TABLE topic TYPE datetime;
`

func (c *Client) InitSchema(ctx context.Context) error {
	_, err := sdk.Query[any](ctx, c.db, schema, nil)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Run is one analysis to publish.
type Run struct {
	ID        string
	TimeRange models.TimeRange
	Records   []models.Classified
	Ranked    []*models.Bucket
}

// Publish replaces the repo and topic tables with run in one transaction.
// Nothing from earlier runs survives.
func (c *Client) Publish(ctx context.Context, run Run) error {
	now := time.Now().UTC()
	_, err := sdk.Query[any](ctx, c.db, `
BEGIN TRANSACTION;
DELETE repo;
DELETE topic;
INSERT INTO repo $repos;
INSERT INTO topic $topics;
COMMIT TRANSACTION;`,
		map[string]any{
			"repos":  repoRows(run, now),
			"topics": topicRows(run, now),
		})
	if err != nil {
		return fmt.Errorf("publishing run %s: %w", run.ID, err)
	}
	return nil
}

// TopicRow is a published bucket as read back from the topic table.
type TopicRow struct {
	Label     string  `json:"label"`
	Rank      int     `json:"rank"`
	Heat      float64 `json:"heat"`
	RepoCount int     `json:"repo_count"`
	AvgScore  float64 `json:"avg_score"`
	RunID     string  `json:"run_id"`
	TimeRange string  `json:"time_range"`
}

func (c *Client) GetTopics(ctx context.Context) ([]TopicRow, error) {
	results, err := sdk.Query[[]TopicRow](ctx, c.db,
		`SELECT label, rank, heat, repo_count, avg_score, run_id, time_range FROM topic ORDER BY rank`, nil)
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

func recordID(id models.Identity) string {
	return strings.ReplaceAll(id.FullName(), "/", "__")
}

func repoRows(run Run, now time.Time) []map[string]any {
	rows := make([]map[string]any, 0, len(run.Records))
	for _, r := range run.Records {
		topics := r.Topics
		if topics == nil {
			topics = []string{}
		}
		scores := map[string]any{}
		for label, s := range r.Scores {
			scores[label] = s
		}
		rows = append(rows, map[string]any{
			"id":             recordID(r.Identity),
			"run_id":         run.ID,
			"author":         r.Author,
			"name":           r.Name,
			"full_name":      r.FullName(),
			"description":    r.Description,
			"language":       r.Language,
			"stars":          r.Stars,
			"forks":          r.Forks,
			"added_stars":    r.AddedStars,
			"watchers":       r.Watchers,
			"issues":         r.Issues,
			"pull_requests":  r.PullRequests,
			"commits":        r.Commits,
			"topics":         topics,
			"readme":         r.Readme,
			"detail_fetched": r.DetailFetched,
			"topic":          r.Topic,
			"score":          r.Score(r.Topic),
			"topic_scores":   scores,
			"published_at":   now,
		})
	}
	return rows
}

func topicRows(run Run, now time.Time) []map[string]any {
	rows := make([]map[string]any, 0, len(run.Ranked))
	for i, b := range run.Ranked {
		rows = append(rows, map[string]any{
			"id":           b.Topic,
			"run_id":       run.ID,
			"label":        b.Topic,
			"rank":         i + 1,
			"heat":         b.Heat,
			"repo_count":   b.RepoCount,
			"avg_score":    b.AvgScore,
			"time_range":   string(run.TimeRange),
			"published_at": now,
		})
	}
	return rows
}
