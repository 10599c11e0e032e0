package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/gymwhisper/internal/models"
)

// HTTPClient implements DataSource by calling the GymWhisper REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// may be empty.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
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
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
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

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

type remoteSession struct {
	FinalizedAt string                    `json:"finalized_at"`
	Records     []models.WorkoutSetRecord `json:"records"`
}

// Sessions fetches the caller's sessions. The server decides the owner from
// the connection identity, so owner is not sent.
func (c *HTTPClient) Sessions(ctx context.Context, _ string) ([]models.WorkoutSession, error) {
	body, err := c.get(ctx, "/api/v1/history/sessions", nil)
	if err != nil {
		return nil, err
	}

	var remote []remoteSession
	if err := json.Unmarshal(body, &remote); err != nil {
		return nil, fmt.Errorf("httpclient: decode sessions: %w", err)
	}

	sessions := make([]models.WorkoutSession, len(remote))
	for i, rs := range remote {
		records := make([]string, len(rs.Records))
		for j, rec := range rs.Records {
			records[j] = rec.String()
		}
		sessions[i] = models.WorkoutSession{FinalizedAt: rs.FinalizedAt, Records: records}
	}
	return sessions, nil
}
