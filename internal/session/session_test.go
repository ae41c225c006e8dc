package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestSession_AppendAndHistory(t *testing.T) {
	s := New()
	assert.Empty(t, s.History())

	s.Append("q1", "a1")
	s.Append("q2", "a2")

	assert.Equal(t, []domain.Turn{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}}, s.History())
	assert.Equal(t, 2, s.Len())
}

func TestSession_HistoryIsCopy(t *testing.T) {
	s := New()
	s.Append("q", "a")

	h := s.History()
	h[0].Answer = "changed"

	assert.Equal(t, "a", s.History()[0].Answer)
	assert.Equal(t, 1, s.Len())
}

func TestSession_ID(t *testing.T) {
	a, b := New(), New()
	_, err := uuid.Parse(a.ID())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.False(t, a.CreatedAt().IsZero())
}

func TestSession_ConcurrentAppend(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(fmt.Sprintf("q%d", i), "a")
			_ = s.History()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

func TestManager(t *testing.T) {
	m := NewManager()

	s := m.Create()
	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	m.Create()
	assert.Equal(t, 2, m.Len())
	assert.Len(t, m.List(), 2)

	require.NoError(t, m.Delete(s.ID()))
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, m.Delete(s.ID()), domain.ErrNotFound)
	assert.Equal(t, 1, m.Len())
}
