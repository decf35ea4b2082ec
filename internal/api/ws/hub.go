// Package ws streams call lifecycle events to admin WebSocket clients.
package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	redisstore "github.com/gosuda/callbridge/internal/store/redis"
)

// Subscriber streams payloads published on a channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Hub manages WebSocket connections backed by pub/sub.
type Hub struct {
	sub            Subscriber
	originPatterns []string
	logger         zerolog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithOriginPatterns allows cross-origin WebSocket clients matching patterns.
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) { h.originPatterns = patterns }
}

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(l zerolog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// NewHub creates a new WebSocket hub. A nil sub makes every stream answer 503.
func NewHub(sub Subscriber, opts ...HubOption) *Hub {
	h := &Hub{sub: sub, logger: log.Logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeCalls streams every call lifecycle event.
func (h *Hub) ServeCalls(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, redisstore.CallsChannel)
}

// ServeCall streams events for the conversation named by the "id" URL param.
func (h *Hub) ServeCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}
	h.stream(w, r, redisstore.CallChannel(id))
}

func (h *Hub) stream(w http.ResponseWriter, r *http.Request, channel string) {
	if h.sub == nil {
		http.Error(w, "event bus not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Reads are only needed to notice the client going away.
	ctx := conn.CloseRead(r.Context())

	messages, cleanup, err := h.sub.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error().Err(err).Str("channel", channel).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				h.logger.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
