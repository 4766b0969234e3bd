package topic

import (
	"fmt"
	"strings"

	"github.com/kevinmichaelchen/repo-pulse/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultFloor is the minimum best score accepted before falling back to Unknown.
const DefaultFloor = 0.10

// Classifier assigns a best topic using a fitted VectorSpace.
type Classifier struct {
	space *VectorSpace
	floor float64
}

func NewClassifier(space *VectorSpace, floor float64) (*Classifier, error) {
	if space == nil {
		return nil, fmt.Errorf("classifier: nil vector space")
	}
	if floor < 0 || floor >= 1 {
		return nil, fmt.Errorf("classifier: confidence floor %.3f outside [0,1)", floor)
	}
	return &Classifier{space: space, floor: floor}, nil
}

// Floor returns the confidence floor.
func (c *Classifier) Floor() float64 { return c.floor }

// Classify scores text against every topic. The best topic is the highest
// score, the earliest topic in corpus order on ties, or Unknown when that
// score is below the floor.
func (c *Classifier) Classify(text string) (string, models.TopicScores) {
	scores := c.space.Similarities(text)

	best, bestScore := models.Unknown, -1.0
	for _, label := range c.space.labels {
		if s := scores[label]; s > bestScore {
			best, bestScore = label, s
		}
	}
	if bestScore < c.floor {
		best = models.Unknown
	}
	return best, scores
}

// ClassificationText is the text a record is classified on: name,
// description and any declared tags.
func ClassificationText(r models.Record) string {
	parts := []string{r.Name, r.Description}
	parts = append(parts, r.Topics...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (c *Classifier) ClassifyRecord(r models.Record) models.Classified {
	topic, scores := c.Classify(ClassificationText(r))
	return models.Classified{Record: r, Topic: topic, Scores: scores}
}

// ClassifyAll classifies records in parallel, preserving input order.
func (c *Classifier) ClassifyAll(records []models.Record, workers int) []models.Classified {
	out := make([]models.Classified, len(records))
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, r := range records {
		g.Go(func() error {
			out[i] = c.ClassifyRecord(r)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
