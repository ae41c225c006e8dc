package cache

import (
	"context"

	"ragchat/internal/port"
)

var _ port.Embedder = (*CachedEmbedder)(nil)

// CachedEmbedder serves repeated texts from a QueryCache and forwards only
// the misses to the wrapped embedder, preserving input order.
type CachedEmbedder struct {
	embedder port.Embedder
	cache    *QueryCache
}

func NewCachedEmbedder(embedder port.Embedder, cache *QueryCache) *CachedEmbedder {
	return &CachedEmbedder{
		embedder: embedder,
		cache:    cache,
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.embedder.ModelName()
	gen := e.cache.Generation()
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(model, text); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.embedder.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		// Let the caller's count check report it.
		return vecs, nil
	}

	for j, vec := range vecs {
		out[missIdx[j]] = vec
		e.cache.PutAt(gen, model, missTexts[j], vec)
	}
	return out, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.embedder.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.embedder.ModelName()
}

func (e *CachedEmbedder) Cache() *QueryCache {
	return e.cache
}
