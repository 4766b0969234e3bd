package heat

import (
	"math"
	"sort"

	"github.com/kevinmichaelchen/repo-pulse/internal/models"
)

// bucketExponent dampens each record's contribution to its bucket's heat.
const bucketExponent = 0.7

// Signals are the engagement counts heat is computed from.
type Signals struct {
	AddedStars   int
	Stars        int
	Forks        int
	Commits      int
	PullRequests int
	Issues       int
	Watchers     int
}

func SignalsOf(r models.Record) Signals {
	return Signals{
		AddedStars:   r.AddedStars,
		Stars:        r.Stars,
		Forks:        r.Forks,
		Commits:      r.Commits,
		PullRequests: r.PullRequests,
		Issues:       r.Issues,
		Watchers:     r.Watchers,
	}
}

// Record computes one repository's heat for a topic score:
//
//	semantic    = sqrt(0.2 + 0.8*score)
//	trend       = ln(1+added_stars)
//	scale       = ln(1+stars) + 0.5*ln(1+forks)
//	dev         = ln(1+commits) + 0.8*ln(1+pull_requests) + 0.5*ln(1+issues)
//	attention   = ln(1+watchers)
//	heat        = semantic * (0.4*trend + (1+trend)*(0.25*scale + 0.25*dev) + 0.1*attention)
//
// Negative counts count as zero and score is clamped to [0,1].
func Record(s Signals, score float64) float64 {
	score = clamp01(score)
	semantic := math.Sqrt(0.2 + 0.8*score)
	trend := log1p(s.AddedStars)
	scale := log1p(s.Stars) + 0.5*log1p(s.Forks)
	dev := log1p(s.Commits) + 0.8*log1p(s.PullRequests) + 0.5*log1p(s.Issues)
	attention := log1p(s.Watchers)
	trendBoost := 1 + trend

	h := semantic * (0.4*trend + trendBoost*(0.25*scale+0.25*dev) + 0.1*attention)
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0
	}
	return h
}

// Aggregate buckets classified records by best topic, skipping Unknown, and
// scores each bucket. Member order follows input order.
func Aggregate(records []models.Classified) map[string]*models.Bucket {
	buckets := make(map[string]*models.Bucket)
	for _, r := range records {
		if r.Topic == "" || r.Topic == models.Unknown {
			continue
		}
		b, ok := buckets[r.Topic]
		if !ok {
			b = &models.Bucket{Topic: r.Topic}
			buckets[r.Topic] = b
		}
		b.Repos = append(b.Repos, r)
	}
	for _, b := range buckets {
		score(b)
	}
	return buckets
}

// score derives Heat, RepoCount and AvgScore from the bucket's members.
func score(b *models.Bucket) {
	var total, weighted, heatSum float64
	for _, r := range b.Repos {
		s := clamp01(r.Score(b.Topic))
		h := Record(SignalsOf(r.Record), s)
		total += math.Pow(h, bucketExponent)
		weighted += s * h
		heatSum += h
	}

	b.RepoCount = len(b.Repos)
	b.Heat = total
	b.AvgScore = 0
	if b.RepoCount > 0 && heatSum > 0 {
		b.AvgScore = clamp01(weighted / heatSum)
	}
}

// Rank orders buckets by heat, hottest first, breaking ties by topic name.
func Rank(buckets map[string]*models.Bucket) []*models.Bucket {
	out := make([]*models.Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Heat != out[j].Heat {
			return out[i].Heat > out[j].Heat
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

// Top ranks buckets and keeps the k hottest, all of them when k <= 0.
func Top(buckets map[string]*models.Bucket, k int) []*models.Bucket {
	ranked := Rank(buckets)
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// TopRepos returns up to k members sorted by added stars, then topic score.
// k <= 0 returns all members.
func TopRepos(b *models.Bucket, k int) []models.Classified {
	repos := append([]models.Classified(nil), b.Repos...)
	sort.SliceStable(repos, func(i, j int) bool {
		if repos[i].AddedStars != repos[j].AddedStars {
			return repos[i].AddedStars > repos[j].AddedStars
		}
		return repos[i].Score(b.Topic) > repos[j].Score(b.Topic)
	})
	if k > 0 && len(repos) > k {
		repos = repos[:k]
	}
	return repos
}

func log1p(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Log1p(float64(n))
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
