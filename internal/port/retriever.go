package port

import "ragchat/internal/domain"

// Retriever answers nearest-neighbour queries over embedded documents.
type Retriever interface {
	// Query returns at most k documents ordered by descending similarity.
	Query(vector []float32, k int) ([]domain.ScoredDocument, error)

	// Dimension returns the vector dimension the retriever accepts.
	Dimension() int
}
