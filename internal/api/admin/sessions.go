// Package admin exposes read-only views of live call sessions.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"github.com/gosuda/callbridge/internal/domain"
	"github.com/gosuda/callbridge/internal/server/middleware"
)

// SessionReader lists and loads live sessions.
type SessionReader interface {
	List() []*domain.Session
	Get(id string) (*domain.Session, error)
}

type SessionSummary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	Caller         string    `json:"caller,omitempty"`
	Trust          string    `json:"trust" enum:"unknown,trusted,untrusted"`
	Turns          int       `json:"turns"`
}

type TurnView struct {
	Role     string          `json:"role" enum:"user,assistant"`
	At       time.Time       `json:"at"`
	Activity domain.Activity `json:"activity"`
}

type SessionDetail struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	Caller         string     `json:"caller,omitempty"`
	Trust          string     `json:"trust" enum:"unknown,trusted,untrusted"`
	Turns          int        `json:"turns"`
	Greeted        bool       `json:"greeted" doc:"Whether the call-start greeting has been sent"`
	BotMetadata    any        `json:"botMetadata,omitempty" doc:"Bot metadata sent at creation"`
	History        []TurnView `json:"history"`
}

type ListSessionsOutput struct {
	Body []SessionSummary
}

type GetSessionInput struct {
	ID string `path:"id" doc:"Conversation ID"`
}

type GetSessionOutput struct {
	Body *SessionDetail
}

// RegisterRoutes mounts the session views. Every detail read is logged with
// the admin subject because it exposes call transcripts.
func RegisterRoutes(api huma.API, sessions SessionReader, logger zerolog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/admin/sessions",
		Summary:     "List live call sessions",
		Tags:        []string{"Admin"},
	}, func(_ context.Context, _ *struct{}) (*ListSessionsOutput, error) {
		all := sessions.List()
		out := make([]SessionSummary, 0, len(all))
		for _, s := range all {
			out = append(out, summarize(s))
		}
		return &ListSessionsOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/admin/sessions/{id}",
		Summary:     "Get a live call session with its history",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error) {
		s, err := sessions.Get(input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to get session", err)
		}

		subject, _ := middleware.SubjectFromContext(ctx)
		logger.Info().Str("subject", subject).Str("conversation_id", s.ID).Msg("admin: session viewed")

		return &GetSessionOutput{Body: detail(s)}, nil
	})
}

func summarize(s *domain.Session) SessionSummary {
	return SessionSummary{
		ID:             s.ID,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt(),
		Caller:         s.Caller(),
		Trust:          s.Trust().String(),
		Turns:          s.Len(),
	}
}

func detail(s *domain.Session) *SessionDetail {
	history := s.History()
	turns := make([]TurnView, 0, len(history))
	for _, t := range history {
		turns = append(turns, TurnView{Role: string(t.Role), At: t.At, Activity: t.Activity})
	}

	var meta any
	if len(s.BotMetadata) > 0 {
		// Stored metadata came from a decoded request body, so it is valid JSON.
		_ = json.Unmarshal(s.BotMetadata, &meta)
	}

	return &SessionDetail{
		ID:             s.ID,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt(),
		Caller:         s.Caller(),
		Trust:          s.Trust().String(),
		Turns:          len(history),
		Greeted:        s.Greeted(),
		BotMetadata:    meta,
		History:        turns,
	}
}
