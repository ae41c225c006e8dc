// Package index implements the in-memory vector index used at query time.
//
// The index performs exact (brute-force) nearest-neighbour search. Vectors are
// fixed to one dimension at creation time, results are ordered by descending
// similarity and ties keep insertion order so repeated queries are stable.
package index

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

var _ port.Retriever = (*Index)(nil)

// Metric selects the similarity function. It must match what the embedding
// model was trained for.
type Metric string

const (
	// MetricCosine scores by cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricDot scores by raw inner product (for dot-calibrated models).
	MetricDot Metric = "dot"
)

// DefaultMetric is used when no metric is configured.
const DefaultMetric = MetricCosine

// ParseMetric converts a configuration string to a Metric.
// An empty string yields DefaultMetric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultMetric, nil
	case MetricCosine:
		return MetricCosine, nil
	case MetricDot, "inner_product", "ip":
		return MetricDot, nil
	default:
		return "", fmt.Errorf("unknown metric %q: %w", s, domain.ErrInvalidInput)
	}
}

// Index stores documents with their vectors.
type Index struct {
	mu        sync.RWMutex
	dimension int
	metric    Metric
	docs      []domain.Document
	vectors   [][]float32
	norms     []float64
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int, metric Metric) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d: %w", dimension, domain.ErrInvalidInput)
	}
	if metric == "" {
		metric = DefaultMetric
	}
	if metric != MetricCosine && metric != MetricDot {
		return nil, fmt.Errorf("unknown metric %q: %w", metric, domain.ErrInvalidInput)
	}
	return &Index{
		dimension: dimension,
		metric:    metric,
	}, nil
}

// Add appends embedded documents. Either every item is added or none is.
func (idx *Index) Add(items []domain.EmbeddedDocument) error {
	for _, item := range items {
		if len(item.Vector) != idx.dimension {
			return &domain.DimensionMismatchError{Expected: idx.dimension, Got: len(item.Vector)}
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, item := range items {
		vec := make([]float32, len(item.Vector))
		copy(vec, item.Vector)
		idx.docs = append(idx.docs, item.Document)
		idx.vectors = append(idx.vectors, vec)
		idx.norms = append(idx.norms, norm(vec))
	}
	return nil
}

// Query returns the k documents most similar to vector.
// If the index holds fewer than k documents all of them are returned.
func (idx *Index) Query(vector []float32, k int) ([]domain.ScoredDocument, error) {
	if len(vector) != idx.dimension {
		return nil, &domain.DimensionMismatchError{Expected: idx.dimension, Got: len(vector)}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || len(idx.vectors) == 0 {
		return []domain.ScoredDocument{}, nil
	}

	queryNorm := norm(vector)

	type scored struct {
		pos   int
		score float64
	}

	scores := make([]scored, len(idx.vectors))
	for i, v := range idx.vectors {
		scores[i] = scored{pos: i, score: idx.similarity(vector, queryNorm, v, idx.norms[i])}
	}

	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]domain.ScoredDocument, k)
	for i := 0; i < k; i++ {
		results[i] = domain.ScoredDocument{
			Document: idx.docs[scores[i].pos],
			Score:    scores[i].score,
		}
	}
	return results, nil
}

// Len returns the number of stored documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Dimension returns the fixed vector dimension.
func (idx *Index) Dimension() int {
	return idx.dimension
}

// Metric returns the similarity metric.
func (idx *Index) Metric() Metric {
	return idx.metric
}

func (idx *Index) similarity(q []float32, qNorm float64, v []float32, vNorm float64) float64 {
	d := dot(q, v)
	if idx.metric == MetricDot {
		return d
	}
	if qNorm == 0 || vNorm == 0 {
		return 0
	}
	return d / (qNorm * vNorm)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
