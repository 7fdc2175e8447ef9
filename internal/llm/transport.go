package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// callResult is the outcome of one HTTP round trip. Expected failure
// statuses (4xx/5xx) are returned here, not as errors; the transport
// errors only for network-level failures (DNS, timeout, abort).
type callResult struct {
	status     int
	body       []byte
	retryAfter time.Duration
}

func (r *callResult) ok() bool {
	return r.status == http.StatusOK
}

func (r *callResult) rateLimited() bool {
	return r.status == http.StatusTooManyRequests
}

func (r *callResult) authFailed() bool {
	return r.status == http.StatusUnauthorized || r.status == http.StatusForbidden
}

// post sends a JSON body with bearer authorization and returns the
// raw result regardless of status.
func (c *Client) post(ctx context.Context, path string, token string, payload any) (*callResult, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &callResult{
		status:     resp.StatusCode,
		body:       body,
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}, nil
}

// parseRetryAfter reads the server's retry hint in seconds. Zero means
// no hint was supplied.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(header, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
