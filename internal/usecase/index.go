package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"ragchat/internal/adapter/index"
	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// IndexUseCase builds vector indexes from a document source and moves them
// in and out of the snapshot store.
type IndexUseCase struct {
	store     port.SnapshotStore
	embedder  port.Embedder
	metric    index.Metric
	batchSize int
	logger    *slog.Logger
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	store port.SnapshotStore,
	embedder port.Embedder,
	metric index.Metric,
	batchSize int,
	logger *slog.Logger,
) *IndexUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexUseCase{
		store:     store,
		embedder:  embedder,
		metric:    metric,
		batchSize: batchSize,
		logger:    logger,
	}
}

// BuildResult contains the results of a build.
type BuildResult struct {
	Snapshot  string
	Documents int
	Dimension int
	Size      int
	Duration  time.Duration
}

// Build loads every document, embeds them and saves the index under name.
// Nothing is saved unless the whole build succeeds.
func (u *IndexUseCase) Build(
	ctx context.Context,
	src port.DocumentSource,
	name string,
	progress func(done, total int),
) (*index.Index, *BuildResult, error) {
	return u.build(ctx, src, name, progress, u.store.SaveSnapshot)
}

// Rebuild is Build for a store whose snapshots are stale: once the new index
// is built it replaces every stored snapshot. A failed rebuild leaves the
// store untouched.
func (u *IndexUseCase) Rebuild(
	ctx context.Context,
	src port.DocumentSource,
	name string,
	progress func(done, total int),
) (*index.Index, *BuildResult, error) {
	return u.build(ctx, src, name, progress, u.store.ReplaceSnapshots)
}

func (u *IndexUseCase) build(
	ctx context.Context,
	src port.DocumentSource,
	name string,
	progress func(done, total int),
	save func(name string, blob []byte, info port.SnapshotInfo) error,
) (*index.Index, *BuildResult, error) {
	start := time.Now()

	if u.embedder == nil {
		return nil, nil, fmt.Errorf("embedder: %w", domain.ErrCredentialMissing)
	}

	docs, err := src.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("no documents found: %w", domain.ErrInvalidInput)
	}
	u.logger.Info("documents loaded", "count", len(docs))

	idx, err := index.Build(ctx, docs, u.embedder, index.BuildOptions{
		Metric:    u.metric,
		BatchSize: u.batchSize,
		Progress:  progress,
	})
	if err != nil {
		return nil, nil, err
	}

	blob, err := idx.Persist()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to persist index: %w", err)
	}

	info := port.SnapshotInfo{
		Model:     u.embedder.ModelName(),
		Dimension: idx.Dimension(),
		Metric:    string(idx.Metric()),
		Documents: idx.Len(),
		CreatedAt: time.Now().UTC(),
	}
	if err := save(name, blob, info); err != nil {
		return nil, nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	result := &BuildResult{
		Snapshot:  name,
		Documents: idx.Len(),
		Dimension: idx.Dimension(),
		Size:      len(blob),
		Duration:  time.Since(start),
	}
	u.logger.Info("index built", "snapshot", name, "documents", result.Documents, "dimension", result.Dimension, "duration", result.Duration)

	return idx, result, nil
}

// Load restores the snapshot saved under name. When an embedder is
// configured its dimension must match the index, otherwise every query
// would fail later.
func (u *IndexUseCase) Load(ctx context.Context, name string) (*index.Index, port.SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, port.SnapshotInfo{}, err
	}

	blob, info, err := u.store.LoadSnapshot(name)
	if err != nil {
		return nil, info, fmt.Errorf("failed to load snapshot %q: %w", name, err)
	}

	idx, err := index.Restore(blob)
	if err != nil {
		return nil, info, fmt.Errorf("failed to restore snapshot %q: %w", name, err)
	}

	if u.embedder != nil {
		if d := u.embedder.Dimension(); d > 0 && d != idx.Dimension() {
			return nil, info, &domain.DimensionMismatchError{Expected: idx.Dimension(), Got: d}
		}
	}

	u.logger.Debug("snapshot loaded", "snapshot", name, "documents", idx.Len(), "model", info.Model)
	return idx, info, nil
}

var _ port.Retriever = (*IndexHolder)(nil)

// IndexHolder serves queries from the current index and lets a rebuilt index
// replace it atomically. In-flight queries finish on the index they started
// with.
type IndexHolder struct {
	current atomic.Pointer[index.Index]
	onSwap  []func()
}

// NewIndexHolder creates a holder. idx may be nil; queries then fail with
// ErrEmptyIndex until Swap is called. onSwap hooks run after every swap.
func NewIndexHolder(idx *index.Index, onSwap ...func()) *IndexHolder {
	h := &IndexHolder{onSwap: onSwap}
	if idx != nil {
		h.current.Store(idx)
	}
	return h
}

// Swap installs idx and returns the previous index.
func (h *IndexHolder) Swap(idx *index.Index) *index.Index {
	old := h.current.Swap(idx)
	for _, fn := range h.onSwap {
		fn()
	}
	return old
}

func (h *IndexHolder) Current() *index.Index {
	return h.current.Load()
}

func (h *IndexHolder) Query(vector []float32, k int) ([]domain.ScoredDocument, error) {
	idx := h.current.Load()
	if idx == nil {
		return nil, domain.ErrEmptyIndex
	}
	return idx.Query(vector, k)
}

func (h *IndexHolder) Dimension() int {
	idx := h.current.Load()
	if idx == nil {
		return 0
	}
	return idx.Dimension()
}
