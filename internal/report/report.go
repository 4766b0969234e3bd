package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kevinmichaelchen/repo-pulse/internal/heat"
	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	"github.com/kevinmichaelchen/repo-pulse/internal/topic"
	"github.com/olekukonko/tablewriter"
)

type Options struct {
	TimeRange models.TimeRange
	TopTopics int // <= 0 shows every topic
	TopRepos  int // <= 0 shows every repo
}

// Topics writes the hottest topics, each followed by a table of its leading
// repositories.
func Topics(w io.Writer, buckets map[string]*models.Bucket, opts Options) {
	ranked := heat.Top(buckets, opts.TopTopics)
	if len(ranked) == 0 {
		fmt.Fprintln(w, "No topics cleared the confidence floor")
		return
	}

	added := "Added"
	if opts.TimeRange != "" {
		added = "Added (" + string(opts.TimeRange) + ")"
	}

	for i, b := range ranked {
		fmt.Fprintf(w, "\n%d. %s  heat %.2f  repos %d  avg score %.3f\n",
			i+1, b.Topic, b.Heat, b.RepoCount, b.AvgScore)

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"#", "Repository", "Lang", "Stars", added, "Score"})
		for j, r := range heat.TopRepos(b, opts.TopRepos) {
			table.Append([]string{
				strconv.Itoa(j + 1),
				r.FullName(),
				orDash(r.Language),
				humanize.Comma(int64(r.Stars)),
				strconv.Itoa(r.AddedStars),
				fmt.Sprintf("%.3f", r.Score(b.Topic)),
			})
		}
		table.Render()
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Summary writes a one-table overview of every topic by heat.
func Summary(w io.Writer, buckets map[string]*models.Bucket, unknown int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Topic", "Heat", "Repos", "Avg Score"})
	for _, b := range heat.Rank(buckets) {
		table.Append([]string{
			b.Topic,
			fmt.Sprintf("%.2f", b.Heat),
			strconv.Itoa(b.RepoCount),
			fmt.Sprintf("%.3f", b.AvgScore),
		})
	}
	if unknown > 0 {
		table.Append([]string{models.Unknown, "-", strconv.Itoa(unknown), "-"})
	}
	table.Render()
}

// Corpus lists the topic labels with their keyword counts and the first few
// keywords of each.
func Corpus(w io.Writer, corpus topic.Corpus) {
	const preview = 4

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Topic", "Keywords", "Examples"})
	table.SetAutoWrapText(false)
	for i, t := range corpus {
		examples := t.Keywords
		if len(examples) > preview {
			examples = examples[:preview]
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			t.Label,
			strconv.Itoa(len(t.Keywords)),
			strings.Join(examples, ", "),
		})
	}
	table.Render()
}
