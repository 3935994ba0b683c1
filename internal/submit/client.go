package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/specialistvlad/dripflow/internal/ctxlog"
)

// CampaignsPath is where campaigns are created, relative to the base URL.
const CampaignsPath = "/api/campaigns"

// Response is the backend's answer to a campaign creation.
type Response struct {
	Message    string `json:"message"`
	CampaignID string `json:"campaign_id"`
}

// Client posts campaign requests to the execution backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient returns an *http.Client with pooled connections and the
// given overall timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewClient returns a client for the backend at baseURL. A nil httpClient
// uses NewHTTPClient(30 * time.Second).
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(30 * time.Second)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Submit creates the campaign described by req.
func (c *Client) Submit(ctx context.Context, req Request) (Response, error) {
	logger := ctxlog.FromContext(ctx)

	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode campaign request: %w", err)
	}
	url := c.baseURL + CampaignsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logger.Info("Submitting campaign", "url", url, "campaign", req.Campaign.ID, "nodes", len(req.Nodes))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}
	logger.Debug("Received HTTP response", "status", resp.Status)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, fmt.Errorf("backend rejected campaign: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
