// Package session holds the in-process registry of live call sessions.
package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gosuda/callbridge/internal/domain"
)

// MemoryStore is an in-memory domain.SessionStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

// Compile-time interface check.
var _ domain.SessionStore = (*MemoryStore)(nil) //nolint:gochecknoglobals // compile-time check

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source used for creation and touches.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a fresh session. A live session with the same id is replaced.
func (s *MemoryStore) Create(id string, metadata json.RawMessage) *domain.Session {
	sess := domain.NewSession(id, metadata, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
	return sess
}

// Get returns the session for id.
func (s *MemoryStore) Get(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session.MemoryStore.Get: %q: %w", id, domain.ErrNotFound)
	}
	return sess, nil
}

// Acquire waits for exclusive use of the session. If the session was removed
// or replaced while waiting, the lock is dropped and ErrNotFound returned.
func (s *MemoryStore) Acquire(id string) (*domain.Session, func(), error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, nil, fmt.Errorf("session.MemoryStore.Acquire: %w", err)
	}

	sess.Lock()

	s.mu.Lock()
	current, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok || current != sess {
		sess.Unlock()
		return nil, nil, fmt.Errorf("session.MemoryStore.Acquire: %q: %w", id, domain.ErrNotFound)
	}

	var once sync.Once
	return sess, func() { once.Do(sess.Unlock) }, nil
}

// Touch marks the session active now.
func (s *MemoryStore) Touch(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if ok {
		sess.Touch(s.now())
	}
}

// Remove deletes the session if present.
func (s *MemoryStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes sessions idle for longer than idle. A session held by an
// in-flight operation is skipped and reconsidered on the next sweep.
func (s *MemoryStore) Sweep(now time.Time, idle time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, sess := range s.sessions {
		if sess.IdleFor(now) <= idle {
			continue
		}
		if !sess.TryLock() {
			continue
		}
		delete(s.sessions, id)
		sess.Unlock()
		removed = append(removed, id)
	}

	sort.Strings(removed)
	return removed
}

// List returns the live sessions ordered by creation time, then id.
func (s *MemoryStore) List() []*domain.Session {
	s.mu.Lock()
	out := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
