package usecase

import (
	"context"
	"errors"
	"sync"

	"ragchat/internal/domain"
)

type mockGenerator struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (g *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.respond == nil {
		return "ok", nil
	}
	return g.respond(prompt)
}

func (g *mockGenerator) ModelName() string { return "mock-llm" }

func (g *mockGenerator) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// mockEmbedder maps known texts to fixed vectors and everything else to
// fallback.
type mockEmbedder struct {
	mu       sync.Mutex
	dim      int
	vectors  map[string][]float32
	fallback []float32
	err      error
	texts    []string
}

func (e *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.texts = append(e.texts, texts...)
	e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = e.fallback
		}
	}
	return out, nil
}

func (e *mockEmbedder) Dimension() int    { return e.dim }
func (e *mockEmbedder) ModelName() string { return "mock-embed" }

type staticSource struct {
	docs []domain.Document
	err  error
}

func (s *staticSource) Load(context.Context) ([]domain.Document, error) {
	return s.docs, s.err
}

var errUpstream = errors.New("upstream unavailable")
