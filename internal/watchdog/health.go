package watchdog

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthChecker reports whether the supervised hub is serving.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// HTTPHealthChecker expects 200 OK from a GET on url.
type HTTPHealthChecker struct {
	client *http.Client
	url    string
}

// NewHTTPHealthChecker creates a checker for url; each request is bounded by
// timeout.
func NewHTTPHealthChecker(url string, timeout time.Duration) *HTTPHealthChecker {
	return &HTTPHealthChecker{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

// Check performs one health check.
func (h *HTTPHealthChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("health check request for %s: %w", h.url, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check %s returned %s", h.url, resp.Status)
	}
	return nil
}
