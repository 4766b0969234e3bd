package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/kevinmichaelchen/repo-pulse/internal/config"
	"github.com/kevinmichaelchen/repo-pulse/internal/heat"
	"github.com/kevinmichaelchen/repo-pulse/internal/llm"
	"github.com/kevinmichaelchen/repo-pulse/internal/pipeline"
	"github.com/kevinmichaelchen/repo-pulse/internal/report"
	"github.com/kevinmichaelchen/repo-pulse/internal/snapshot"
	"github.com/kevinmichaelchen/repo-pulse/internal/topic"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "repo-pulse",
		Short:         "GitHub trending → topic buckets ranked by heat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.String("config", "", "Config file (yaml, toml or json)")
	f.String("time-range", "daily", "Trending window: daily, weekly or monthly")
	f.StringSlice("languages", nil, "Language lists to crawl after the unfiltered one (default python,go,c,c++,javascript,typescript)")
	f.Int("concurrency", 10, "Maximum in-flight requests")
	f.Float64("confidence-floor", 0.10, "Minimum topic score; below it a repo is Unknown")
	f.Bool("strict", false, "Abort on the first failed page")
	f.String("snapshot-path", "trending.json", "Snapshot file")
	f.String("analysis-path", "topics.json", "Analysis file")
	f.String("proxy-url", "", "HTTP proxy for crawling")
	f.Int("top-topics", 5, "Topics shown in the report")
	f.Int("top-repos", 5, "Repositories shown per topic")
	f.String("log-level", "info", "debug, info, warn or error")

	root.AddCommand(crawlCmd(), analyzeCmd(), runCmd(), topicsCmd(), digestCmd(), publishCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads config for cmd and installs its logger as the default.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(cfg.Logger(os.Stderr))
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	return ctx, cancel, cfg, nil
}

func crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawl trending lists and overwrite the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			res, err := pipeline.Crawl(ctx, cfg, slog.Default())
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d repos to %s (%d listed across %d pages, %d failed)\n",
				len(res.Records), cfg.SnapshotPath, res.Listed, res.Pages, len(res.Failures))
			return nil
		},
	}
}

func analyzeCmd() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Classify an existing snapshot and report the hottest topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			records, err := snapshot.Read(cfg.SnapshotPath)
			if err != nil {
				return err
			}
			a, err := pipeline.Analyze(ctx, cfg, records, slog.Default())
			if err != nil {
				return err
			}
			if summary {
				report.Summary(os.Stdout, a.Buckets, a.Unknown)
				return nil
			}
			report.Topics(os.Stdout, a.Buckets, report.Options{
				TimeRange: cfg.TimeRange,
				TopTopics: cfg.TopTopics,
				TopRepos:  cfg.TopRepos,
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "One table of every topic instead of per-topic repos")
	return cmd
}

func runCmd() *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl, snapshot, classify and report in one go",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			_, err = pipeline.Run(ctx, cfg, pipeline.Options{Publish: publish})
			return err
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "Replace the SurrealDB tables with this run")
	return cmd
}

func topicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List the topic corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			report.Corpus(os.Stdout, topic.DefaultCorpus())
			return nil
		},
	}
}

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Summarize the last analysis with an LLM",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			doc, err := snapshot.ReadAnalysis(cfg.AnalysisPath)
			if err != nil {
				return err
			}
			client, err := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
			if err != nil {
				return err
			}

			ranked := heat.Top(doc.Buckets(), cfg.TopTopics)
			d, err := client.Digest(ctx, doc.TimeRange, ranked, cfg.TopRepos)
			if err != nil {
				return err
			}

			fmt.Printf("%s\n\n", d.Headline)
			for _, n := range d.Topics {
				fmt.Printf("%s\n  %s\n", n.Topic, n.Note)
			}
			return nil
		},
	}
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Classify the snapshot and replace the SurrealDB tables with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			records, err := snapshot.Read(cfg.SnapshotPath)
			if err != nil {
				return err
			}
			a, err := pipeline.Analyze(ctx, cfg, records, slog.Default())
			if err != nil {
				return err
			}
			if err := pipeline.Publish(ctx, cfg, a, slog.Default()); err != nil {
				return err
			}
			fmt.Printf("Published %d repos in %d topics (run %s)\n", len(a.Classified), len(a.Ranked), a.Doc.RunID)
			return nil
		},
	}
}
