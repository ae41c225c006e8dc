package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors_MatchSentinels(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"embedding", &EmbeddingError{Op: "query", Err: cause}, ErrEmbedding},
		{"rewrite", &RewriteError{Err: cause}, ErrRewrite},
		{"generation", &GenerationError{Err: cause}, ErrGeneration},
		{"dimension", &DimensionMismatchError{Expected: 3, Got: 4}, ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("ask: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestTypedErrors_UnwrapCause(t *testing.T) {
	cause := errors.New("timeout")

	assert.ErrorIs(t, &EmbeddingError{Err: cause}, cause)
	assert.ErrorIs(t, &RewriteError{Err: cause}, cause)
	assert.ErrorIs(t, &GenerationError{Err: cause}, cause)
}

func TestTypedErrors_DoNotCrossMatch(t *testing.T) {
	err := &RewriteError{Err: errors.New("boom")}

	assert.NotErrorIs(t, err, ErrGeneration)
	assert.NotErrorIs(t, err, ErrEmbedding)
}

func TestDimensionMismatchError_As(t *testing.T) {
	err := fmt.Errorf("query: %w", &DimensionMismatchError{Expected: 384, Got: 768})

	var dm *DimensionMismatchError
	if assert.ErrorAs(t, err, &dm) {
		assert.Equal(t, 384, dm.Expected)
		assert.Equal(t, 768, dm.Got)
	}
	assert.Equal(t, "query: dimension mismatch: expected 384, got 768", err.Error())
}

func TestEmbeddingError_Message(t *testing.T) {
	assert.Equal(t, "embedding failed: x", (&EmbeddingError{Err: errors.New("x")}).Error())
	assert.Equal(t, "embedding failed (build): x", (&EmbeddingError{Op: "build", Err: errors.New("x")}).Error())
}
