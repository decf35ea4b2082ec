// Package activity converts Bot API activities into dialogue effects and
// wraps replies back into outbound activities.
package activity

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/callbridge/internal/domain"
)

// TimestampLayout is UTC ISO-8601 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Effect is what an inbound activity asks the dialogue layer to do.
type Effect interface {
	// Source returns the inbound activity that produced the effect.
	Source() domain.Activity
}

// Greeting asks for the call-start greeting.
type Greeting struct {
	Caller    string
	HasCaller bool
	From      domain.Activity
}

func (g Greeting) Source() domain.Activity { return g.From }

// Utterance forwards something the caller said.
type Utterance struct {
	Text string
	From domain.Activity
}

func (u Utterance) Source() domain.Activity { return u.From }

// Translator maps activities to effects and back.
type Translator struct {
	now   func() time.Time
	newID func() string
}

// Option configures a Translator.
type Option func(*Translator)

// WithClock overrides the timestamp source for outbound activities.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) { t.now = now }
}

// WithIDGenerator overrides the id source for outbound activities.
func WithIDGenerator(newID func() string) Option {
	return func(t *Translator) { t.newID = newID }
}

// NewTranslator creates a Translator using wall-clock time and random UUIDs.
func NewTranslator(opts ...Option) *Translator {
	t := &Translator{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate returns the effect for a single activity, or false when the
// activity carries nothing to act on.
func (t *Translator) Translate(a domain.Activity) (Effect, bool) {
	switch {
	case a.Type == domain.ActivityTypeEvent && a.Name == domain.EventNameStart:
		caller, ok := a.Param("caller")
		return Greeting{Caller: caller, HasCaller: ok, From: a}, true
	case a.Type == domain.ActivityTypeMessage && a.Text != "":
		return Utterance{Text: a.Text, From: a}, true
	default:
		return nil, false
	}
}

// DecodeInbound decodes raw inbound activities in order. Elements that are
// null or do not fit the activity shape are dropped.
func DecodeInbound(raw []json.RawMessage) []domain.Activity {
	activities := make([]domain.Activity, 0, len(raw))
	for _, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) == 0 || bytes.Equal(r, []byte("null")) {
			continue
		}
		var a domain.Activity
		if err := json.Unmarshal(r, &a); err != nil {
			continue
		}
		activities = append(activities, a)
	}
	return activities
}

// TranslateInbound maps activities to effects in order. Unrecognized
// activities are dropped.
func (t *Translator) TranslateInbound(activities []domain.Activity) []Effect {
	effects := make([]Effect, 0, len(activities))
	for _, a := range activities {
		if e, ok := t.Translate(a); ok {
			effects = append(effects, e)
		}
	}
	return effects
}

// WrapOutbound builds an outbound message activity carrying text.
func (t *Translator) WrapOutbound(text string) domain.Activity {
	return domain.Activity{
		ID:        t.newID(),
		Timestamp: t.now().UTC().Format(TimestampLayout),
		Type:      domain.ActivityTypeMessage,
		Text:      text,
	}
}
