package session

import (
	"context"
	"sync"
	"time"

	"buffonomics/internal/observability"
)

type entry struct {
	username  string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
	now      Clock
}

// NewMemoryStore returns an empty store whose sessions live for ttl.
// A nil clock uses time.Now.
func NewMemoryStore(ttl time.Duration, clock Clock) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		sessions: make(map[string]entry),
		ttl:      ttl,
		now:      clock,
	}
}

func (s *MemoryStore) Issue(_ context.Context, username string) (Session, error) {
	token, err := NewToken()
	if err != nil {
		return Session{}, err
	}
	expiresAt := s.now().Add(s.ttl)

	s.mu.Lock()
	s.sessions[token] = entry{username: username, expiresAt: expiresAt}
	n := len(s.sessions)
	s.mu.Unlock()

	observability.ActiveSessions.Set(float64(n))
	return Session{Token: token, Username: username, ExpiresAt: expiresAt}, nil
}

func (s *MemoryStore) Validate(_ context.Context, token string) (string, bool) {
	if token == "" {
		return "", false
	}

	s.mu.RLock()
	e, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}

	if !e.expiresAt.After(s.now()) {
		s.mu.Lock()
		// Re-check so a concurrent re-issue under the same token is not dropped.
		if cur, still := s.sessions[token]; still && !cur.expiresAt.After(s.now()) {
			delete(s.sessions, token)
		}
		n := len(s.sessions)
		s.mu.Unlock()
		observability.ActiveSessions.Set(float64(n))
		return "", false
	}
	return e.username, true
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	n := len(s.sessions)
	s.mu.Unlock()

	observability.ActiveSessions.Set(float64(n))
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context) int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for token, e := range s.sessions {
		if !e.expiresAt.After(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	observability.ActiveSessions.Set(float64(n))
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
