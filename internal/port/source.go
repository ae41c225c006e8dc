package port

import (
	"context"

	"ragchat/internal/domain"
)

// DocumentSource produces the documents to be indexed.
type DocumentSource interface {
	Load(ctx context.Context) ([]domain.Document, error)
}
