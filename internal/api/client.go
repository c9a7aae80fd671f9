// Package api is the JSON-over-HTTP client for the remote fitness API. The
// server contract the rest of the agent relies on: writes are idempotent by
// the client-supplied Idempotency-Key header, reads return JSON.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/repsync/internal/models"
)

// TransportError marks a network-level failure (connection refused, DNS,
// timeout) as opposed to a response the server actually produced. The agent
// and queue branch on it to decide between cache fallback and surfacing.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "network unavailable: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsOffline reports whether err represents a network-level failure.
func IsOffline(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Response is a server response as seen by the mediation layer.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Client sends requests to the remote fitness API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client targeting the given base URL.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do performs one request. A nil error with a non-2xx Response means the
// server answered; a *TransportError means it never did.
func (c *Client) do(ctx context.Context, method, pathAndQuery string, body []byte, header http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, reader)
	if err != nil {
		return nil, fmt.Errorf("api: create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

// Forward relays a mediated request as-is and returns whatever the server
// answered. Used by the mediation agent for both resource classes.
func (c *Client) Forward(ctx context.Context, method, pathAndQuery string, body []byte, contentType string) (*Response, error) {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return c.do(ctx, method, pathAndQuery, body, header)
}

// Send replays one queued mutation. The mutation's ID travels as the
// Idempotency-Key header so a duplicate replay cannot create a duplicate
// record server-side. A non-2xx answer is returned as an error; the caller
// must not remove the mutation until Send returns nil.
func (c *Client) Send(ctx context.Context, m models.QueuedMutation) error {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Idempotency-Key", m.ID)

	resp, err := c.do(ctx, m.Method, m.Endpoint, m.Body, header)
	if err != nil {
		return fmt.Errorf("sending mutation %s: %w", m.ID, err)
	}
	if !resp.OK() {
		return fmt.Errorf("mutation %s rejected (status %d): %s", m.ID, resp.Status, resp.Body)
	}
	return nil
}

// CompleteSession submits a finished session. The session ID doubles as the
// idempotency key.
func (c *Client) CompleteSession(ctx context.Context, session models.CompletedSession) error {
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return c.Send(ctx, models.QueuedMutation{
		ID:       session.SessionID,
		Endpoint: "/api/v1/sessions/complete",
		Method:   http.MethodPost,
		Body:     body,
	})
}

// Workout fetches a workout plan by ID.
func (c *Client) Workout(ctx context.Context, id string) (*models.Workout, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/workouts/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("workout %s returned %d: %s", id, resp.Status, resp.Body)
	}
	var w models.Workout
	if err := json.Unmarshal(resp.Body, &w); err != nil {
		return nil, fmt.Errorf("decoding workout: %w", err)
	}
	return &w, nil
}

// Recommendations fetches AI workout recommendations. The payload is opaque
// to the agent and handed to the UI as-is.
func (c *Client) Recommendations(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/recommendations", nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("recommendations returned %d: %s", resp.Status, resp.Body)
	}
	return json.RawMessage(resp.Body), nil
}

// Health probes the server's health endpoint. Used by the connectivity
// prober; any answered request counts as online.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
	if err != nil {
		return err
	}
	if resp.Status >= 500 {
		return fmt.Errorf("health returned %d", resp.Status)
	}
	return nil
}
