package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrSubmitNotAllowed is returned when a placement is submitted without a
	// candidate location or a name.
	ErrSubmitNotAllowed = errors.New("submit not allowed: location and name are required")
)

// UpstreamError means the remote service answered with a non-2xx status.
type UpstreamError struct {
	Service    string
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s %s: status code %d: %s", e.Service, e.Method, e.URL, e.StatusCode, e.Body)
}

// Is lets callers match a 404 with errors.Is(err, ErrNotFound).
func (e *UpstreamError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// MalformedResponseError means a 2xx body did not have the expected shape.
type MalformedResponseError struct {
	Service  string
	Endpoint string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response from %s: %v", e.Service, e.Endpoint, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// TransientTransportError is returned once connection-level retries are exhausted.
type TransientTransportError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *TransientTransportError) Error() string {
	return fmt.Sprintf("%s: transport failure after %d attempts: %v", e.Service, e.Attempts, e.Err)
}

func (e *TransientTransportError) Unwrap() error { return e.Err }

// ValidationError wraps input rejected before any network call.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return "validation failed: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }
