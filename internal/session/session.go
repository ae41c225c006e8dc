// Package session holds conversation state: an append-only list of turns per
// conversation and a registry of live conversations.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"ragchat/internal/domain"
)

// Session is one conversation. Turns are only ever appended.
type Session struct {
	id        string
	createdAt time.Time

	// askMu serialises whole question/answer exchanges.
	askMu sync.Mutex

	mu      sync.RWMutex
	history []domain.Turn
}

func New() *Session {
	return &Session{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) Append(question, answer string) {
	s.mu.Lock()
	s.history = append(s.history, domain.Turn{Question: question, Answer: answer})
	s.mu.Unlock()
}

// History returns a copy of the turns, oldest first.
func (s *Session) History() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Lock reserves the session for one exchange. Callers must Unlock.
func (s *Session) Lock() {
	s.askMu.Lock()
}

func (s *Session) Unlock() {
	s.askMu.Unlock()
}
