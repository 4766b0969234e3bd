package models

import (
	"fmt"
	"strings"
)

// Unknown is the topic assigned when no topic clears the confidence floor.
const Unknown = "Unknown"

// Identity is the natural key of a repository.
type Identity struct {
	Author string `json:"author"`
	Name   string `json:"name"`
}

func (id Identity) FullName() string {
	return id.Author + "/" + id.Name
}

func (id Identity) IsZero() bool {
	return id.Author == "" || id.Name == ""
}

// Summary is what a trending list page tells us about a repository.
type Summary struct {
	Identity
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
	AddedStars  int    `json:"added_stars"`
}

// Detail is what a repository's own page adds on top of the summary.
type Detail struct {
	Watchers     int      `json:"watchers"`
	Issues       int      `json:"issues"`
	PullRequests int      `json:"pull_requests"`
	Commits      int      `json:"commits"`
	Topics       []string `json:"topics"`
	Readme       string   `json:"readme"`
}

// Record is one element of the snapshot.
type Record struct {
	Summary
	Detail
	DetailFetched bool `json:"detail_fetched"`
}

func NewRecord(s Summary, d Detail, fetched bool) Record {
	if d.Topics == nil {
		d.Topics = []string{}
	}
	return Record{Summary: s, Detail: d, DetailFetched: fetched}
}

// TopicScores maps a topic label to its cosine similarity in [0,1].
type TopicScores map[string]float64

// Classified is a record with its best topic and complete score vector.
type Classified struct {
	Record
	Topic  string      `json:"topic"`
	Scores TopicScores `json:"topic_scores"`
}

// Score returns the record's relevance to topic, zero when absent.
func (c Classified) Score(topic string) float64 {
	return c.Scores[topic]
}

// Bucket groups the classified records sharing a best topic.
type Bucket struct {
	Topic     string       `json:"topic"`
	Heat      float64      `json:"heat"`
	RepoCount int          `json:"repo_count"`
	AvgScore  float64      `json:"avg_score"`
	Repos     []Classified `json:"repos"`
}

// TimeRange is the trending window.
type TimeRange string

const (
	Daily   TimeRange = "daily"
	Weekly  TimeRange = "weekly"
	Monthly TimeRange = "monthly"
)

func ParseTimeRange(s string) (TimeRange, error) {
	switch tr := TimeRange(strings.ToLower(strings.TrimSpace(s))); tr {
	case Daily, Weekly, Monthly:
		return tr, nil
	case "":
		return Daily, nil
	default:
		return "", fmt.Errorf("invalid time range %q (want daily, weekly or monthly)", s)
	}
}
