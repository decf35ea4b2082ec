// Package botapi registers the voice Bot API webhook operations.
package botapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/callbridge/internal/activity"
	"github.com/gosuda/callbridge/internal/call"
	"github.com/gosuda/callbridge/internal/domain"
)

// Lifecycle is the subset of the call controller the webhook needs.
type Lifecycle interface {
	Create(ctx context.Context, conversationID string, botMetadata json.RawMessage) call.CreateResult
	ProcessActivities(ctx context.Context, conversationID string, inbound []domain.Activity) ([]domain.Activity, error)
	Refresh(ctx context.Context, conversationID string) (call.RefreshResult, error)
	Disconnect(ctx context.Context, conversationID, reason, reasonCode string) error
}

type HealthOutput struct {
	Body struct {
		Type    string `json:"type" example:"ac-bot-api"`
		Success bool   `json:"success"`
	}
}

type CreateConversationInput struct {
	Body struct {
		_            struct{}        `json:"-" additionalProperties:"true"`
		Conversation string          `json:"conversation" minLength:"1" doc:"Conversation ID assigned by the call-control platform"`
		Bot          json.RawMessage `json:"bot,omitempty" doc:"Bot metadata, stored with the session as sent"`
		Capabilities json.RawMessage `json:"capabilities,omitempty" doc:"Client capabilities, accepted and ignored"`
	}
}

type CreateConversationOutput struct {
	Body struct {
		ActivitiesURL  string `json:"activitiesURL"`
		RefreshURL     string `json:"refreshURL"`
		DisconnectURL  string `json:"disconnectURL"`
		ExpiresSeconds int    `json:"expiresSeconds"`
	}
}

type ActivitiesInput struct {
	ID   string `path:"id" doc:"Conversation ID"`
	Body struct {
		_            struct{}          `json:"-" additionalProperties:"true"`
		Conversation string            `json:"conversation,omitempty" doc:"Conversation ID, informational"`
		Activities   []json.RawMessage `json:"activities,omitempty" doc:"Inbound activities, processed in order. Elements that are not activities are ignored."`
	}
}

type ActivitiesOutput struct {
	Body struct {
		Activities []domain.Activity `json:"activities"`
	}
}

type RefreshInput struct {
	ID string `path:"id" doc:"Conversation ID"`
}

type RefreshOutput struct {
	Body struct {
		ExpiresSeconds int `json:"expiresSeconds"`
	}
}

type DisconnectBody struct {
	_          struct{} `json:"-" additionalProperties:"true"`
	Reason     string   `json:"reason,omitempty" doc:"Human-readable reason"`
	ReasonCode any      `json:"reasonCode,omitempty" doc:"Platform reason code"`
}

type DisconnectInput struct {
	ID   string          `path:"id" doc:"Conversation ID"`
	Body *DisconnectBody `required:"false"`
}

type DisconnectOutput struct {
	Body struct{}
}

// NewConfig returns the huma config for the Bot API. The schema link hook is
// dropped so response bodies carry only protocol fields.
func NewConfig() huma.Config {
	cfg := huma.DefaultConfig("callbridge Bot API", "1.0.0")
	cfg.CreateHooks = nil
	return cfg
}

func RegisterRoutes(api huma.API, lc Lifecycle) {
	huma.Register(api, huma.Operation{
		OperationID: "bot-health",
		Method:      http.MethodGet,
		Path:        "/webhook",
		Summary:     "Bot API health probe",
		Tags:        []string{"Bot API"},
	}, func(_ context.Context, _ *struct{}) (*HealthOutput, error) {
		out := &HealthOutput{}
		out.Body.Type = "ac-bot-api"
		out.Body.Success = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-conversation",
		Method:      http.MethodPost,
		Path:        "/webhook",
		Summary:     "Start a conversation",
		Tags:        []string{"Bot API"},
	}, func(ctx context.Context, input *CreateConversationInput) (*CreateConversationOutput, error) {
		res := lc.Create(ctx, input.Body.Conversation, input.Body.Bot)

		out := &CreateConversationOutput{}
		out.Body.ActivitiesURL = res.ActivitiesURL
		out.Body.RefreshURL = res.RefreshURL
		out.Body.DisconnectURL = res.DisconnectURL
		out.Body.ExpiresSeconds = res.ExpiresSeconds
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "post-activities",
		Method:      http.MethodPost,
		Path:        "/conversation/{id}/activities",
		Summary:     "Exchange activities for a conversation",
		Tags:        []string{"Bot API"},
	}, func(ctx context.Context, input *ActivitiesInput) (*ActivitiesOutput, error) {
		outbound, err := lc.ProcessActivities(ctx, input.ID, activity.DecodeInbound(input.Body.Activities))
		if err != nil {
			return nil, mapError(err)
		}
		if outbound == nil {
			outbound = []domain.Activity{}
		}

		out := &ActivitiesOutput{}
		out.Body.Activities = outbound
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-conversation",
		Method:      http.MethodPost,
		Path:        "/conversation/{id}/refresh",
		Summary:     "Keep a conversation alive",
		Tags:        []string{"Bot API"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		res, err := lc.Refresh(ctx, input.ID)
		if err != nil {
			return nil, mapError(err)
		}

		out := &RefreshOutput{}
		out.Body.ExpiresSeconds = res.ExpiresSeconds
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "disconnect-conversation",
		Method:      http.MethodPost,
		Path:        "/conversation/{id}/disconnect",
		Summary:     "End a conversation",
		Tags:        []string{"Bot API"},
	}, func(ctx context.Context, input *DisconnectInput) (*DisconnectOutput, error) {
		var reason, code string
		if input.Body != nil {
			reason = input.Body.Reason
			if input.Body.ReasonCode != nil {
				code = fmt.Sprint(input.Body.ReasonCode)
			}
		}

		if err := lc.Disconnect(ctx, input.ID, reason, code); err != nil {
			return nil, mapError(err)
		}
		return &DisconnectOutput{}, nil
	})
}

func mapError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return huma.Error404NotFound("conversation not found")
	}
	return huma.Error500InternalServerError("internal error", err)
}
