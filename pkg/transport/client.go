// Package transport sends log packets to analyzer endpoints over HTTP.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client sends packets and health probes to analyzer endpoints.
type Client struct {
	client *http.Client
}

// NewClient creates a new transport client with standard pooling settings.
// The timeout is an outer bound per request; callers pass tighter
// per-attempt deadlines through the context.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Send delivers a packet body via HTTP POST.
// Returns nil on 2xx, *HTTPError on any other status, and a wrapped
// error on network failure or timeout.
func (c *Client) Send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return &HTTPError{StatusCode: resp.StatusCode}
}

// Probe checks whether the analyzer behind url is alive by GETting its
// sibling /health endpoint. Returns nil iff the probe responds 200.
func (c *Client) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, HealthURL(url), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	return nil
}

// HealthURL derives the health endpoint for an analyzer ingest URL by
// replacing the last path segment: http://host:8001/analyze -> http://host:8001/health.
func HealthURL(url string) string {
	if i := strings.LastIndex(url, "/"); i > len("https:/") {
		return url[:i] + "/health"
	}
	return strings.TrimRight(url, "/") + "/health"
}

// HTTPError represents a non-2xx HTTP response.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsClientError returns true for 4xx responses that indicate a defective
// payload and must not be retried. 408 and 429 are transient and excluded.
func IsClientError(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	if he.StatusCode == http.StatusRequestTimeout || he.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return he.StatusCode >= 400 && he.StatusCode < 500
}

// IsTimeout returns true if err represents a request timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
