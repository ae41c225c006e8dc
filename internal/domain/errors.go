package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// match with errors.Is.
var (
	// ErrCredentialMissing indicates the generator or embedder is not configured.
	ErrCredentialMissing = errors.New("credential missing")

	// ErrEmbedding indicates an embedding call failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrRewrite indicates the standalone question could not be produced.
	ErrRewrite = errors.New("query rewrite failed")

	// ErrGeneration indicates the answer generator failed.
	ErrGeneration = errors.New("generation failed")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	// Usually the embedding model changed without rebuilding the index.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyIndex indicates no index has been built or loaded.
	ErrEmptyIndex = errors.New("index not loaded")
)

// EmbeddingError wraps a failed embedding call.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("embedding failed: %v", e.Err)
	}
	return fmt.Sprintf("embedding failed (%s): %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// RewriteError wraps a failed standalone-question rewrite.
type RewriteError struct {
	Err error
}

func (e *RewriteError) Error() string { return fmt.Sprintf("query rewrite failed: %v", e.Err) }

func (e *RewriteError) Unwrap() error { return e.Err }

func (e *RewriteError) Is(target error) bool { return target == ErrRewrite }

// GenerationError wraps a failed answer generation call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation failed: %v", e.Err) }

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// DimensionMismatchError reports a vector whose length differs from the index dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }
