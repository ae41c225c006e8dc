package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ragchat/config"
	"ragchat/internal/adapter/cache"
	"ragchat/internal/adapter/embedding"
	"ragchat/internal/adapter/index"
	"ragchat/internal/adapter/llm"
	"ragchat/internal/adapter/store"
	"ragchat/internal/port"
	"ragchat/internal/prompt"
	"ragchat/internal/usecase"
)

// newEmbedder builds the configured embedder. A missing API key is not an
// error: it yields a nil embedder, which the pipeline reports as rejected.
func newEmbedder(cfg *config.Config) (port.Embedder, *cache.QueryCache, error) {
	ec := cfg.Embedding

	var emb port.Embedder
	switch ec.Provider {
	case "hash", "mock":
		emb = embedding.NewHashEmbedder(ec.Dimension)
	default:
		key := ec.APIKey()
		if key == "" && ec.Provider != "ollama" {
			slog.Debug("embedding API key not set", "env", ec.APIKeyEnv)
			return nil, nil, nil
		}
		e, err := embedding.NewProviderEmbedder(ec.Provider, embedding.Config{
			APIKey:            key,
			Model:             ec.Model,
			BaseURL:           ec.BaseURL,
			Dimension:         ec.Dimension,
			Timeout:           ec.Timeout(),
			RequestsPerSecond: ec.RequestsPerSecond,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		emb = e
	}

	if ec.CacheSize <= 0 {
		return emb, nil, nil
	}
	qc := cache.NewQueryCache(ec.CacheSize, time.Duration(ec.CacheTTLSecs)*time.Second)
	return cache.NewCachedEmbedder(emb, qc), qc, nil
}

// newGenerator builds the configured generator, nil when no key is set.
func newGenerator(cfg *config.Config) (port.Generator, error) {
	lc := cfg.LLM

	key := lc.APIKey()
	if key == "" && lc.Provider != "ollama" && lc.Provider != "local" {
		slog.Debug("LLM API key not set", "env", lc.APIKeyEnv)
		return nil, nil
	}

	gen, err := llm.NewProviderGenerator(lc.Provider, llm.Config{
		APIKey:      key,
		Model:       lc.Model,
		BaseURL:     lc.BaseURL,
		Temperature: lc.Temperature,
		MaxTokens:   lc.MaxTokens,
		Timeout:     lc.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	return gen, nil
}

func newTemplates(cfg *config.Config) (*prompt.Templates, error) {
	return prompt.New(prompt.Options{
		Topic:        cfg.Prompt.Topic,
		CondenseFile: cfg.Prompt.CondenseFile,
		AnswerFile:   cfg.Prompt.AnswerFile,
	})
}

// openStore opens the index database of dir. It fails when no index has
// been built yet.
func openStore(dir string) (*store.BoltStore, error) {
	dbPath := config.IndexDBPath(dir)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no index found. Run 'ragchat ingest' first")
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return st, nil
}

// runtime is everything a question-answering command needs.
type runtime struct {
	store    *store.BoltStore
	holder   *usecase.IndexHolder
	indexUC  *usecase.IndexUseCase
	pipeline *usecase.Pipeline
	embedder port.Embedder

	generator port.Generator
	cache     *cache.QueryCache
}

// Close logs usage counters and closes the store.
func (r *runtime) Close() error {
	if r.cache != nil {
		hits, misses := r.cache.Stats()
		slog.Debug("query embedding cache", "hits", hits, "misses", misses, "entries", r.cache.Size())
	}
	if g, ok := r.generator.(*llm.OpenAIGenerator); ok {
		st := g.Stats()
		slog.Debug("LLM usage", "model", g.ModelName(), "calls", st.Calls,
			"input_chars", st.InputChars, "output_chars", st.OutputChars)
	}
	return r.store.Close()
}

// loadRuntime restores the configured snapshot and wires the pipeline.
func loadRuntime(ctx context.Context, cfg *config.Config, dir string) (*runtime, error) {
	st, err := openStore(dir)
	if err != nil {
		return nil, err
	}

	result, err := st.CheckMigration(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}
	if result.NeedsRebuild {
		st.Close()
		return nil, fmt.Errorf("index must be rebuilt (%s). Run 'ragchat ingest'", result.Reason)
	}

	emb, qc, err := newEmbedder(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	gen, err := newGenerator(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	tmpl, err := newTemplates(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	metric, err := index.ParseMetric(cfg.Retrieve.Metric)
	if err != nil {
		st.Close()
		return nil, err
	}

	indexUC := usecase.NewIndexUseCase(st, emb, metric, cfg.Ingest.BatchSize, slog.Default())
	idx, _, err := indexUC.Load(ctx, cfg.Ingest.Snapshot)
	if err != nil {
		st.Close()
		return nil, err
	}

	var hooks []func()
	if qc != nil {
		hooks = append(hooks, qc.Invalidate)
	}
	holder := usecase.NewIndexHolder(idx, hooks...)

	pipeline := usecase.NewPipeline(gen, emb, holder, usecase.PipelineOptions{
		TopK: cfg.Retrieve.TopK,
		Assembler: usecase.AssemblerOptions{
			MaxContextChars: cfg.Retrieve.MaxContextChars,
			MinScore:        cfg.Retrieve.MinScoreThreshold,
		},
		Templates: tmpl,
		Logger:    slog.Default(),
	})

	return &runtime{
		store:     st,
		holder:    holder,
		indexUC:   indexUC,
		pipeline:  pipeline,
		embedder:  emb,
		generator: gen,
		cache:     qc,
	}, nil
}
