package topic

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/kevinmichaelchen/repo-pulse/internal/models"
)

const maxNgram = 3

// VectorSpace is a TF-IDF model fitted on a corpus, one document per topic.
// It is immutable after NewVectorSpace returns and safe for concurrent use.
type VectorSpace struct {
	labels  []string
	idf     map[string]float64
	vectors []sparseVector // parallel to labels, L2-normalized
}

// sparseVector holds nonzero weights sorted by term, so every sum over it
// runs in the same order and repeated scoring is bit-identical.
type sparseVector []termWeight

type termWeight struct {
	term   string
	weight float64
}

// NewVectorSpace fits the term weights over unigrams through trigrams of the
// corpus. Each topic's keywords are joined into one synthetic document.
func NewVectorSpace(corpus Corpus) (*VectorSpace, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("building vector space: empty corpus")
	}

	seen := make(map[string]bool, len(corpus))
	counts := make([]map[string]int, len(corpus))
	df := make(map[string]int)
	for i, t := range corpus {
		if t.Label == "" || t.Label == models.Unknown {
			return nil, fmt.Errorf("building vector space: invalid topic label %q", t.Label)
		}
		if seen[t.Label] {
			return nil, fmt.Errorf("building vector space: duplicate topic %q", t.Label)
		}
		seen[t.Label] = true

		counts[i] = termCounts(analyze(strings.Join(t.Keywords, " ")))
		if len(counts[i]) == 0 {
			return nil, fmt.Errorf("building vector space: topic %q has no usable terms", t.Label)
		}
		for term := range counts[i] {
			df[term]++
		}
	}

	// Smoothed idf: ln((1+n)/(1+df)) + 1.
	n := float64(len(corpus))
	idf := make(map[string]float64, len(df))
	for term, d := range df {
		idf[term] = math.Log((1+n)/(1+float64(d))) + 1
	}

	vs := &VectorSpace{
		labels:  corpus.Labels(),
		idf:     idf,
		vectors: make([]sparseVector, len(corpus)),
	}
	for i, c := range counts {
		vs.vectors[i] = vs.weigh(c)
	}
	return vs, nil
}

// Labels returns the topic labels in corpus order.
func (vs *VectorSpace) Labels() []string {
	return append([]string(nil), vs.labels...)
}

// VocabularySize is the number of distinct terms in the model.
func (vs *VectorSpace) VocabularySize() int {
	return len(vs.idf)
}

// Similarities returns the cosine similarity of text against every topic.
// Terms outside the vocabulary contribute nothing; text with no known terms
// scores zero everywhere.
func (vs *VectorSpace) Similarities(text string) models.TopicScores {
	q := vs.weigh(termCounts(analyze(text)))

	scores := make(models.TopicScores, len(vs.labels))
	for i, label := range vs.labels {
		scores[label] = clamp01(dot(q, vs.vectors[i]))
	}
	return scores
}

// weigh turns raw counts into an L2-normalized tf*idf vector, dropping
// out-of-vocabulary terms.
func (vs *VectorSpace) weigh(counts map[string]int) sparseVector {
	terms := make([]string, 0, len(counts))
	for term := range counts {
		if _, ok := vs.idf[term]; ok {
			terms = append(terms, term)
		}
	}
	slices.Sort(terms)

	v := make(sparseVector, len(terms))
	var norm float64
	for i, term := range terms {
		x := float64(counts[term]) * vs.idf[term]
		v[i] = termWeight{term: term, weight: x}
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i].weight /= norm
	}
	return v
}

// dot merges two term-sorted vectors.
func dot(a, b sparseVector) float64 {
	var sum float64
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i].term < b[j].term:
			i++
		case a[i].term > b[j].term:
			j++
		default:
			sum += a[i].weight * b[j].weight
			i++
			j++
		}
	}
	return sum
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

// analyze lowercases, tokenizes, drops stop words and emits 1..3-grams.
func analyze(text string) []string {
	tokens := tokenize(text)
	terms := make([]string, 0, len(tokens)*maxNgram)
	for n := 1; n <= maxNgram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// tokenize keeps runs of two or more word characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := englishStopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func termCounts(terms []string) map[string]int {
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	return counts
}
