package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls [][]string
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, append([]string(nil), texts...))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (e *countingEmbedder) Dimension() int   { return 2 }
func (e *countingEmbedder) ModelName() string { return "counting" }

func TestQueryCache_GetPut(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	_, ok := c.Get("m", "hello")
	assert.False(t, ok)

	c.Put("m", "hello", []float32{1, 2})
	got, ok := c.Get("m", "hello")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, got)

	_, ok = c.Get("other-model", "hello")
	assert.False(t, ok, "keys are scoped by model")

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQueryCache(2, time.Minute)

	c.Put("m", "a", []float32{1})
	c.Put("m", "b", []float32{2})
	_, ok := c.Get("m", "a")
	require.True(t, ok)

	c.Put("m", "c", []float32{3})

	assert.Equal(t, 2, c.Size())
	_, ok = c.Get("m", "b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("m", "a")
	assert.True(t, ok)
}

func TestQueryCache_TTL(t *testing.T) {
	c := NewQueryCache(10, time.Millisecond)
	c.Put("m", "a", []float32{1})

	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("m", "a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestQueryCache_Invalidate(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	c.Put("m", "a", []float32{1})

	c.Invalidate()

	_, ok := c.Get("m", "a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestQueryCache_PutAtDropsStaleGeneration(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	gen := c.Generation()

	c.Invalidate()
	c.PutAt(gen, "m", "a", []float32{1})
	_, ok := c.Get("m", "a")
	assert.False(t, ok, "vector computed before the swap is discarded")

	c.PutAt(c.Generation(), "m", "a", []float32{1})
	_, ok = c.Get("m", "a")
	assert.True(t, ok)
}

func TestQueryCache_PutRefreshesExisting(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	c.Put("m", "a", []float32{1})
	c.Put("m", "a", []float32{9})

	got, ok := c.Get("m", "a")
	require.True(t, ok)
	assert.Equal(t, []float32{9}, got)
	assert.Equal(t, 1, c.Size())
}

func TestCachedEmbedder_ServesHitsAndForwardsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	emb := NewCachedEmbedder(inner, NewQueryCache(10, time.Minute))

	first, err := emb.Embed(context.Background(), []string{"aa", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1}, {3, 1}}, first)

	second, err := emb.Embed(context.Background(), []string{"bbb", "c", "aa"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 1}, {1, 1}, {2, 1}}, second)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"c"}, inner.calls[1], "only the miss reaches the embedder")

	third, err := emb.Embed(context.Background(), []string{"c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}}, third)
	assert.Len(t, inner.calls, 2)

	assert.Equal(t, 2, emb.Dimension())
	assert.Equal(t, "counting", emb.ModelName())
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("boom")}
	emb := NewCachedEmbedder(inner, NewQueryCache(10, time.Minute))

	_, err := emb.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, 0, emb.Cache().Size())
}
