package index

import (
	"context"
	"fmt"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// DefaultBatchSize is the number of documents embedded per call.
const DefaultBatchSize = 32

// BuildOptions configures Build.
type BuildOptions struct {
	Metric    Metric
	BatchSize int

	// Progress, when set, is called after each batch with the number of
	// documents embedded so far.
	Progress func(done, total int)
}

// Build embeds every document and returns a populated index.
//
// Any embedding failure aborts the build; a partially embedded index is
// never returned.
func Build(ctx context.Context, docs []domain.Document, emb port.Embedder, opts BuildOptions) (*Index, error) {
	if emb == nil {
		return nil, fmt.Errorf("build index: %w", domain.ErrCredentialMissing)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	dimension := emb.Dimension()
	items := make([]domain.EmbeddedDocument, 0, len(docs))

	for start := 0; start < len(docs); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, &domain.EmbeddingError{Op: "build", Err: err}
		}

		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Text
		}

		vectors, err := emb.Embed(ctx, texts)
		if err != nil {
			return nil, &domain.EmbeddingError{
				Op:  "build",
				Err: fmt.Errorf("documents %d-%d (first source %q): %w", start, end-1, batch[0].SourceID, err),
			}
		}
		if len(vectors) != len(batch) {
			return nil, &domain.EmbeddingError{
				Op:  "build",
				Err: fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(batch)),
			}
		}

		for i, vec := range vectors {
			if dimension <= 0 {
				dimension = len(vec)
			}
			if len(vec) != dimension || dimension == 0 {
				return nil, fmt.Errorf("document %q: %w", batch[i].SourceID,
					&domain.DimensionMismatchError{Expected: dimension, Got: len(vec)})
			}
			items = append(items, domain.EmbeddedDocument{Document: batch[i], Vector: vec})
		}

		if opts.Progress != nil {
			opts.Progress(end, len(docs))
		}
	}

	if dimension <= 0 {
		return nil, fmt.Errorf("build index: cannot infer dimension from an empty corpus: %w", domain.ErrInvalidInput)
	}

	idx, err := New(dimension, opts.Metric)
	if err != nil {
		return nil, err
	}
	if err := idx.Add(items); err != nil {
		return nil, err
	}
	return idx, nil
}
