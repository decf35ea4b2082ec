// Package alert notifies the owner out of band when an untrusted caller
// reaches the assistant.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"
)

// SlackAPI abstracts the subset of the Slack client used for alerts.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// Slack posts untrusted-caller alerts to one channel. Delivery happens in the
// background so the caller is never delayed.
type Slack struct {
	api     SlackAPI
	channel string
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// SlackOption configures a Slack alerter.
type SlackOption func(*Slack)

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) SlackOption {
	return func(s *Slack) { s.timeout = d }
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l zerolog.Logger) SlackOption {
	return func(s *Slack) { s.logger = l }
}

// NewSlack creates an alerter posting to channel.
func NewSlack(api SlackAPI, channel string, opts ...SlackOption) *Slack {
	s := &Slack{
		api:     api,
		channel: channel,
		timeout: 5 * time.Second,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSlackFromToken builds the alerter on a real Slack client.
func NewSlackFromToken(botToken, channel string, opts ...SlackOption) *Slack {
	return NewSlack(slacklib.New(botToken), channel, opts...)
}

// UntrustedCaller queues an alert for an untrusted caller on conversationID.
func (s *Slack) UntrustedCaller(conversationID, caller string) {
	text := fmt.Sprintf(":warning: Untrusted caller %s connected (conversation %s)", displayCaller(caller), conversationID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, _, err := s.api.PostMessageContext(ctx, s.channel, slacklib.MsgOptionText(text, false)); err != nil {
			s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("alert: slack post failed")
		}
	}()
}

// Close waits for queued alerts to finish.
func (s *Slack) Close() {
	s.wg.Wait()
}

func displayCaller(caller string) string {
	if caller == "" {
		return "unknown"
	}
	return caller
}
