// Package agent talks to the conversational agent backend over its
// OpenResponses-compatible HTTP API.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	responsesPath = "/v1/responses"

	// AgentIDHeader routes the request to a specific agent on the gateway.
	AgentIDHeader = "x-openclaw-agent-id"

	maxErrorBody = 4 << 10
)

// Client calls POST {baseURL}/v1/responses.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	agentID    string
	model      string
}

// Compile-time interface check.
var _ Backend = (*Client)(nil) //nolint:gochecknoglobals // compile-time check

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken attaches a bearer token to every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithAgentID sets the agent routing header.
func WithAgentID(id string) ClientOption {
	return func(c *Client) { c.agentID = id }
}

// WithModel sets the model field of every request.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithTimeout sets the overall request timeout of the default http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// NewClient creates a Client for the gateway at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		agentID:    "main",
		model:      "openclaw",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Respond sends req once. A non-2xx status yields *StatusError; the response
// body is otherwise decoded as a Response.
func (c *Client) Respond(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("agent.Client.Respond: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+responsesPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("agent.Client.Respond: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.agentID != "" {
		httpReq.Header.Set(AgentIDHeader, c.agentID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent.Client.Respond: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("agent.Client.Respond: decode: %w", err)
	}
	return &out, nil
}
