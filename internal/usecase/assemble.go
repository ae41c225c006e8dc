package usecase

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// ContextDelimiter separates passages in an assembled context block.
const ContextDelimiter = "\n\n"

// Context is the retrieved material handed to the answer prompt. Sources
// lists exactly the passages joined into Text, in the same order.
type Context struct {
	Text    string
	Sources []domain.ScoredDocument
}

// AssemblerOptions bounds the context block. Zero values disable each limit.
type AssemblerOptions struct {
	MaxContextChars int
	MinScore        float64
}

// ContextAssembler embeds a standalone question, retrieves the closest
// passages and joins them in relevance order.
type ContextAssembler struct {
	embedder  port.Embedder
	retriever port.Retriever
	opts      AssemblerOptions
}

func NewContextAssembler(embedder port.Embedder, retriever port.Retriever, opts AssemblerOptions) *ContextAssembler {
	return &ContextAssembler{
		embedder:  embedder,
		retriever: retriever,
		opts:      opts,
	}
}

// Assemble returns an empty context when nothing is retrieved. Embedding
// failures are returned as EmbeddingError; retriever errors, including
// dimension mismatches, are returned unchanged.
func (a *ContextAssembler) Assemble(ctx context.Context, standalone string, k int) (Context, error) {
	if a.embedder == nil {
		return Context{}, &domain.EmbeddingError{Op: "query", Err: domain.ErrCredentialMissing}
	}
	if a.retriever == nil {
		return Context{}, domain.ErrEmptyIndex
	}

	vecs, err := a.embedder.Embed(ctx, []string{standalone})
	if err != nil {
		return Context{}, &domain.EmbeddingError{Op: "query", Err: err}
	}
	if len(vecs) != 1 {
		return Context{}, &domain.EmbeddingError{
			Op:  "query",
			Err: fmt.Errorf("expected 1 vector, got %d", len(vecs)),
		}
	}

	results, err := a.retriever.Query(vecs[0], k)
	if err != nil {
		return Context{}, err
	}

	if a.opts.MinScore > 0 {
		results = filterByScore(results, a.opts.MinScore)
	}

	return a.join(results), nil
}

func (a *ContextAssembler) join(results []domain.ScoredDocument) Context {
	var sb strings.Builder
	sources := make([]domain.ScoredDocument, 0, len(results))

	for _, r := range results {
		extra := len(r.Document.Text)
		if len(sources) > 0 {
			extra += len(ContextDelimiter)
		}
		// Passages are never cut; the tail is dropped instead.
		if a.opts.MaxContextChars > 0 && sb.Len()+extra > a.opts.MaxContextChars {
			break
		}
		if len(sources) > 0 {
			sb.WriteString(ContextDelimiter)
		}
		sb.WriteString(r.Document.Text)
		sources = append(sources, r)
	}

	return Context{Text: sb.String(), Sources: sources}
}

func filterByScore(results []domain.ScoredDocument, threshold float64) []domain.ScoredDocument {
	filtered := make([]domain.ScoredDocument, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
