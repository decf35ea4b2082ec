// Package events publishes call lifecycle events for dashboards and audit.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Type names a lifecycle event.
type Type string

const (
	TypeCreated         Type = "created"
	TypeActivity        Type = "activity"
	TypeDisconnected    Type = "disconnected"
	TypeExpired         Type = "expired"
	TypeUntrustedCaller Type = "untrusted_caller"
)

// Event is one lifecycle notification.
type Event struct {
	Type           Type      `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Caller         string    `json:"caller,omitempty"`
	Trust          string    `json:"trust,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher delivers an encoded event to everyone watching all calls and to
// those watching conversationID.
type Publisher interface {
	PublishCall(ctx context.Context, conversationID string, payload []byte) error
}

// Bus encodes events and hands them to a Publisher. A nil publisher makes
// every Emit a no-op.
type Bus struct {
	pub    Publisher
	now    func() time.Time
	logger zerolog.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used for publish failures.
func WithLogger(l zerolog.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) BusOption {
	return func(b *Bus) { b.now = now }
}

// NewBus creates a Bus over pub, which may be nil.
func NewBus(pub Publisher, opts ...BusOption) *Bus {
	b := &Bus{pub: pub, now: time.Now, logger: log.Logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enabled reports whether events go anywhere.
func (b *Bus) Enabled() bool {
	return b != nil && b.pub != nil
}

// Emit publishes ev. Failures are logged and never returned.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	if !b.Enabled() {
		return
	}
	if ev.At.IsZero() {
		ev.At = b.now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error().Err(err).Msg("events: marshal event")
		return
	}

	if pubErr := b.pub.PublishCall(ctx, ev.ConversationID, payload); pubErr != nil {
		b.logger.Warn().Err(pubErr).
			Str("conversation_id", ev.ConversationID).
			Str("type", string(ev.Type)).
			Msg("events: publish failed")
	}
}
