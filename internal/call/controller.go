// Package call drives the lifecycle of call sessions: creation, activity
// processing, refresh, disconnect and idle expiry.
package call

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/callbridge/internal/activity"
	"github.com/gosuda/callbridge/internal/domain"
	"github.com/gosuda/callbridge/internal/events"
)

const (
	// ExpiresSeconds is the session lifetime advertised to the call-control side.
	ExpiresSeconds = 120

	// SweepInterval is how often idle sessions are collected.
	SweepInterval = 60 * time.Second

	// IdleTimeout is how long a session may go without activity before it is collected.
	IdleTimeout = 5 * time.Minute
)

// Mediator produces the reply text for one dialogue effect.
type Mediator interface {
	Handle(ctx context.Context, sess *domain.Session, effect activity.Effect) string
}

// Alerter is told about untrusted callers.
type Alerter interface {
	UntrustedCaller(conversationID, caller string)
}

// CreateResult is returned to the call-control side on session creation.
type CreateResult struct {
	ActivitiesURL  string
	RefreshURL     string
	DisconnectURL  string
	ExpiresSeconds int
}

// RefreshResult is returned on refresh.
type RefreshResult struct {
	ExpiresSeconds int
}

// Controller is the only component that creates or deletes sessions.
type Controller struct {
	store         domain.SessionStore
	translator    *activity.Translator
	mediator      Mediator
	bus           *events.Bus
	alerts        Alerter
	now           func() time.Time
	sweepInterval time.Duration
	idleTimeout   time.Duration
	logger        zerolog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithEvents publishes lifecycle events on bus.
func WithEvents(bus *events.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithAlerter reports untrusted callers to a.
func WithAlerter(a Alerter) Option {
	return func(c *Controller) { c.alerts = a }
}

// WithClock overrides the time source for turns and sweeps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithSweep overrides the sweep interval and idle timeout. Non-positive
// values keep the defaults.
func WithSweep(interval, idle time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.sweepInterval = interval
		}
		if idle > 0 {
			c.idleTimeout = idle
		}
	}
}

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController wires the lifecycle controller.
func NewController(store domain.SessionStore, translator *activity.Translator, mediator Mediator, opts ...Option) *Controller {
	c := &Controller{
		store:         store,
		translator:    translator,
		mediator:      mediator,
		now:           time.Now,
		sweepInterval: SweepInterval,
		idleTimeout:   IdleTimeout,
		logger:        log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create starts a session for conversationID, replacing any existing one.
func (c *Controller) Create(ctx context.Context, conversationID string, botMetadata json.RawMessage) CreateResult {
	c.store.Create(conversationID, botMetadata)

	c.logger.Info().Str("conversation_id", conversationID).RawJSON("bot", rawOrNull(botMetadata)).Msg("call: creating new conversation")
	c.bus.Emit(ctx, events.Event{Type: events.TypeCreated, ConversationID: conversationID})

	base := "/conversation/" + url.PathEscape(conversationID)
	return CreateResult{
		ActivitiesURL:  base + "/activities",
		RefreshURL:     base + "/refresh",
		DisconnectURL:  base + "/disconnect",
		ExpiresSeconds: ExpiresSeconds,
	}
}

// ProcessActivities runs inbound activities through the dialogue in order and
// returns one outbound activity per actionable inbound activity. Concurrent
// calls for the same conversation are serialized.
func (c *Controller) ProcessActivities(ctx context.Context, conversationID string, inbound []domain.Activity) ([]domain.Activity, error) {
	sess, release, err := c.store.Acquire(conversationID)
	if err != nil {
		return nil, fmt.Errorf("call.Controller.ProcessActivities: %w", err)
	}
	defer release()

	c.store.Touch(conversationID)
	trustBefore := sess.Trust()

	for _, a := range inbound {
		c.logger.Info().
			Str("conversation_id", conversationID).
			Str("type", a.Type).
			Str("name", a.Name).
			Msg("call: received activity")
		sess.Append(domain.Turn{Role: domain.RoleUser, Activity: a, At: c.now()})
	}

	// The backend call must not be cut short if the call-control side hangs up.
	dialogueCtx := context.WithoutCancel(ctx)

	effects := c.translator.TranslateInbound(inbound)
	outbound := make([]domain.Activity, 0, len(effects))
	for _, effect := range effects {
		reply := c.mediator.Handle(dialogueCtx, sess, effect)
		outbound = append(outbound, c.translator.WrapOutbound(reply))
	}

	for _, a := range outbound {
		sess.Append(domain.Turn{Role: domain.RoleAssistant, Activity: a, At: c.now()})
	}
	c.store.Touch(conversationID)

	if trustBefore == domain.TrustUnknown && sess.Trust() == domain.TrustUntrusted {
		c.reportUntrusted(ctx, sess)
	}

	c.bus.Emit(ctx, events.Event{
		Type:           events.TypeActivity,
		ConversationID: conversationID,
		Caller:         sess.Caller(),
		Trust:          sess.Trust().String(),
		Detail:         fmt.Sprintf("%d in, %d out", len(inbound), len(outbound)),
	})

	return outbound, nil
}

// Refresh keeps an existing session alive.
func (c *Controller) Refresh(_ context.Context, conversationID string) (RefreshResult, error) {
	if _, err := c.store.Get(conversationID); err != nil {
		return RefreshResult{}, fmt.Errorf("call.Controller.Refresh: %w", err)
	}
	c.store.Touch(conversationID)
	return RefreshResult{ExpiresSeconds: ExpiresSeconds}, nil
}

// Disconnect ends an existing session once any in-flight processing on it has
// finished. reason and reasonCode are only logged.
func (c *Controller) Disconnect(ctx context.Context, conversationID, reason, reasonCode string) error {
	sess, release, err := c.store.Acquire(conversationID)
	if err != nil {
		return fmt.Errorf("call.Controller.Disconnect: %w", err)
	}
	defer release()

	c.store.Remove(conversationID)

	c.logger.Info().
		Str("conversation_id", conversationID).
		Str("reason", reason).
		Str("reason_code", reasonCode).
		Int("turns", sess.Len()).
		Msg("call: conversation ended")
	c.bus.Emit(ctx, events.Event{
		Type:           events.TypeDisconnected,
		ConversationID: conversationID,
		Caller:         sess.Caller(),
		Trust:          sess.Trust().String(),
		Detail:         joinReason(reason, reasonCode),
	})
	return nil
}

// SweepNow removes sessions idle longer than the idle timeout as of now.
func (c *Controller) SweepNow(ctx context.Context, now time.Time) []string {
	removed := c.store.Sweep(now, c.idleTimeout)
	for _, id := range removed {
		c.logger.Info().Str("conversation_id", id).Msg("call: cleaning up stale conversation")
		c.bus.Emit(ctx, events.Event{Type: events.TypeExpired, ConversationID: id})
	}
	return removed
}

// Run sweeps on every interval tick until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.SweepNow(ctx, c.now())
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) reportUntrusted(ctx context.Context, sess *domain.Session) {
	caller := sess.Caller()
	c.bus.Emit(ctx, events.Event{
		Type:           events.TypeUntrustedCaller,
		ConversationID: sess.ID,
		Caller:         caller,
		Trust:          domain.TrustUntrusted.String(),
	})
	if c.alerts != nil {
		c.alerts.UntrustedCaller(sess.ID, caller)
	}
}

func joinReason(reason, code string) string {
	switch {
	case reason != "" && code != "":
		return reason + " (" + code + ")"
	case code != "":
		return code
	default:
		return reason
	}
}

func rawOrNull(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
