package domain

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// TrustLevel is the caller-trust classification of a session.
type TrustLevel int

const (
	TrustUnknown TrustLevel = iota
	TrustTrusted
	TrustUntrusted
)

func (l TrustLevel) String() string {
	switch l {
	case TrustTrusted:
		return "trusted"
	case TrustUntrusted:
		return "untrusted"
	default:
		return "unknown"
	}
}

// MarshalText renders the level as its lowercase name.
func (l TrustLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Role tags the author of a history turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a session's history.
type Turn struct {
	Role     Role      `json:"role"`
	Activity Activity  `json:"activity"`
	At       time.Time `json:"at"`
}

// Session is one active call. ID, BotMetadata and CreatedAt never change after
// construction; everything else is reached through methods.
type Session struct {
	ID          string
	BotMetadata json.RawMessage
	CreatedAt   time.Time

	// op serializes activity processing, disconnects and sweeps for this session.
	op sync.Mutex

	lastActivity atomic.Int64

	mu      sync.Mutex
	caller  string
	trust   TrustLevel
	greeted bool
	history []Turn
}

// NewSession returns a session created at now with unknown trust and no history.
func NewSession(id string, metadata json.RawMessage, now time.Time) *Session {
	s := &Session{
		ID:          id,
		BotMetadata: metadata,
		CreatedAt:   now,
	}
	s.lastActivity.Store(now.UnixNano())
	return s
}

// Lock acquires exclusive use of the session for one operation.
func (s *Session) Lock() { s.op.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.op.Unlock() }

// TryLock acquires the session only if no operation holds it.
func (s *Session) TryLock() bool { return s.op.TryLock() }

// LastActivityAt returns the time of the most recent successful operation.
func (s *Session) LastActivityAt() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Touch advances LastActivityAt to now. Earlier times are ignored so the
// timestamp never moves backward.
func (s *Session) Touch(now time.Time) {
	n := now.UnixNano()
	for {
		old := s.lastActivity.Load()
		if n <= old {
			return
		}
		if s.lastActivity.CompareAndSwap(old, n) {
			return
		}
	}
}

// IdleFor reports how long the session has been idle as of now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivityAt())
}

// Classify records the caller and its trust level. It succeeds once per
// session; later calls return ErrTrustAlreadySet and change nothing.
func (s *Session) Classify(caller string, level TrustLevel) error {
	if level != TrustTrusted && level != TrustUntrusted {
		return ErrInvalidTrust
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trust != TrustUnknown {
		return ErrTrustAlreadySet
	}
	s.caller = caller
	s.trust = level
	return nil
}

// Caller returns the caller identifier, empty before classification.
func (s *Session) Caller() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caller
}

// Trust returns the cached trust level.
func (s *Session) Trust() TrustLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trust
}

// MarkGreeted records that the first start event was processed and reports
// whether this call was the first.
func (s *Session) MarkGreeted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := !s.greeted
	s.greeted = true
	return first
}

// Greeted reports whether a start event has been processed.
func (s *Session) Greeted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.greeted
}

// Append adds turns to the end of the history.
func (s *Session) Append(turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turns...)
}

// History returns a copy of the history in insertion order.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of history turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// SessionStore is the keyed registry of live sessions. A session missing from
// the store is terminated.
type SessionStore interface {
	// Create inserts a new session, replacing any session with the same id.
	Create(id string, metadata json.RawMessage) *Session

	// Get returns the live session or ErrNotFound.
	Get(id string) (*Session, error)

	// Acquire locks the session for one operation. The release func must be
	// called exactly once. Returns ErrNotFound if the session is gone.
	Acquire(id string) (*Session, func(), error)

	// Touch marks the session active now. No-op when absent.
	Touch(id string)

	// Remove deletes the session. Idempotent.
	Remove(id string)

	// Sweep removes sessions idle longer than idle as of now and returns their ids.
	Sweep(now time.Time, idle time.Duration) []string

	// List returns all live sessions ordered by creation time.
	List() []*Session

	// Len returns the number of live sessions.
	Len() int
}
