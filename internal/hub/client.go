package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/debutade/debutade-hub/internal/orchestrator"
)

// APIError is a failed hub API call.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hub returned %d", e.StatusCode)
	}
	return e.Message
}

// Client talks to a running hub.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the hub at baseURL. Launches can take as
// long as a subapp's startup, so the timeout is generous.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) do(ctx context.Context, method, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("hub not reachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// Launch starts appID and returns its URL.
func (c *Client) Launch(ctx context.Context, appID string) (string, error) {
	var resp LaunchResponse
	code, err := c.do(ctx, http.MethodPost, "/api/launch/"+appID, &resp)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", &APIError{StatusCode: code, Kind: resp.Kind, Message: resp.Error}
	}
	return resp.URL, nil
}

// Stop stops appID and returns how many processes were stopped.
func (c *Client) Stop(ctx context.Context, appID string) (int, error) {
	var resp StopResponse
	code, err := c.do(ctx, http.MethodPost, "/stop/"+appID, &resp)
	if err != nil {
		return 0, err
	}
	if code != http.StatusOK {
		return resp.Stopped, &APIError{StatusCode: code, Message: resp.Message}
	}
	return resp.Stopped, nil
}

// Apps returns every app's status in catalog order.
func (c *Client) Apps(ctx context.Context) ([]orchestrator.AppStatus, error) {
	var apps []orchestrator.AppStatus
	code, err := c.do(ctx, http.MethodGet, "/api/apps", &apps)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, &APIError{StatusCode: code}
	}
	return apps, nil
}
