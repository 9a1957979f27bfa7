package backend

import (
	"errors"
	"fmt"
)

// ErrTransport covers network failures, an open breaker and undecodable responses.
var ErrTransport = errors.New("backend transport failure")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
