package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth marks a missing or rejected credential. The cached
	// credential has already been cleared when this surfaces; callers
	// must not retry the failed task automatically.
	ErrAuth = errors.New("authentication failed")

	// ErrRateLimited marks a rate-limit response. The shared backoff
	// window has already been armed when this surfaces, so subsequent
	// tasks wait it out before dispatching.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmptyResponse marks a well-formed provider response that
	// carried no usable output text.
	ErrEmptyResponse = errors.New("empty response")
)

// APIError is a well-formed provider error response. It is terminal
// for the attempt that produced it; no fallback endpoint is tried.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}
