// Package generation wraps the remote media providers that produce voiceover
// and background music for a scene. Providers are slow; every call carries a
// bounded deadline and a timeout is reported as such, never retried here.
package generation

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout classifies a provider call that exceeded its deadline.
var ErrTimeout = errors.New("generation timed out")

// Request describes one generation job.
type Request struct {
	Prompt  string
	Options map[string]string
}

// Generator produces one media asset and returns the URL it is reachable at.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Error is a typed provider failure.
type Error struct {
	Provider   string
	StatusCode int
	Body       string
	Timeout    bool
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s generation timed out", e.Provider)
	}
	return fmt.Sprintf("%s generation failed: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error {
	if e.Timeout {
		return ErrTimeout
	}
	return nil
}

// IsRetryable returns true for server errors (5xx). Client errors and
// timeouts are considered permanent; the caller decides whether to try again.
func (e *Error) IsRetryable() bool {
	return !e.Timeout && e.StatusCode >= 500
}
