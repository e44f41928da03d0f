package opencode

import (
	"errors"
	"fmt"
)

// Supervisor lifecycle errors.
var (
	// ErrAlreadyRunning is returned by Start when a process handle is live.
	ErrAlreadyRunning = errors.New("opencode server already running")
	// ErrStartupTimeout is returned when the server never reports healthy
	// within the configured retry budget.
	ErrStartupTimeout = errors.New("opencode server did not become healthy")
)

// ErrBackendUnavailable wraps transport-level failures (connection refused,
// timeout) on any API call.
var ErrBackendUnavailable = errors.New("opencode server unavailable")

// BackendError is a non-2xx response from the opencode server.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("opencode api: status %d", e.Status)
	}
	return fmt.Sprintf("opencode api: status %d: %s", e.Status, e.Body)
}
