package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request is one turn sent to the agent backend.
type Request struct {
	Model        string `json:"model"`
	Input        string `json:"input"`
	User         string `json:"user"`
	Instructions string `json:"instructions"`
}

// Response is the subset of an OpenResponses reply the bridge reads. Text and
// Response are kept raw because backends disagree on their shape.
type Response struct {
	Output   []OutputItem    `json:"output,omitempty"`
	Text     json.RawMessage `json:"text,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// OutputItem is one entry of Response.Output.
type OutputItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ContentPart is one content fragment of a message output item.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Backend produces a reply for a single request.
type Backend interface {
	Respond(ctx context.Context, req Request) (*Response, error)
}

// StatusError reports a non-success HTTP status from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent: backend returned status %d: %s", e.Code, e.Body)
}
