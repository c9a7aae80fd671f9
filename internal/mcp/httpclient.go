package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/repsync/internal/models"
	"github.com/claude/repsync/internal/store"
)

// HTTPClient implements DataSource by calling the agent's control API.
// Used when the MCP binary runs in its own process and the agent owns
// the database.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: *HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL,
// normally http://127.0.0.1:<agent port>.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, store.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *HTTPClient) ActiveSnapshot(ctx context.Context) (*models.SessionSnapshot, error) {
	body, err := c.get(ctx, "/local/v1/session", nil)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Session *models.SessionSnapshot `json:"session"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("httpclient: decode session: %w", err)
	}
	if wrapper.Session == nil {
		return nil, store.ErrNotFound
	}
	return wrapper.Session, nil
}

func (c *HTTPClient) PersonalRecords(ctx context.Context) ([]models.ExerciseBest, error) {
	body, err := c.get(ctx, "/local/v1/records", nil)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Records []models.ExerciseBest `json:"records"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("httpclient: decode records: %w", err)
	}
	return wrapper.Records, nil
}

func (c *HTTPClient) AllMutations(ctx context.Context) ([]models.QueuedMutation, error) {
	body, err := c.get(ctx, "/local/v1/queue", nil)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Mutations []models.QueuedMutation `json:"mutations"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("httpclient: decode queue: %w", err)
	}
	return wrapper.Mutations, nil
}

func (c *HTTPClient) SetHistory(ctx context.Context, exerciseID string, limit int) ([]models.SetRecord, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/local/v1/history/"+url.PathEscape(exerciseID), params)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Sets []models.SetRecord `json:"sets"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("httpclient: decode history: %w", err)
	}
	return wrapper.Sets, nil
}
