package docsearch

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrAuthExchangeFailed indicates the backend rejected a federated credential
	// (authorization code or identity token) during the login exchange.
	ErrAuthExchangeFailed = errors.New("docsearch: auth exchange failed")

	// ErrSessionInvalid indicates the stored bearer token was rejected (expired,
	// malformed or revoked). The token has been cleared; the caller must re-authenticate.
	ErrSessionInvalid = errors.New("docsearch: session invalid")

	// ErrStreamFailed indicates a streaming answer could not be opened or was cut off
	// by a connection-level failure. Partial stream state is preserved.
	ErrStreamFailed = errors.New("docsearch: stream request failed")

	// ErrStreamAborted indicates the stream was cancelled by the user or by the program.
	// It is never surfaced as a stream error.
	ErrStreamAborted = errors.New("docsearch: stream aborted")

	// ErrStreamIdleTimeout indicates no bytes arrived on a stream within the configured idle window.
	ErrStreamIdleTimeout = errors.New("docsearch: stream idle timeout")

	// ErrMalformedEvent indicates a single stream event failed to parse.
	ErrMalformedEvent = errors.New("docsearch: malformed stream event")

	// ErrUnauthorized indicates the backend answered 401 or 403.
	ErrUnauthorized = errors.New("docsearch: unauthorized")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("docsearch: not found")

	// ErrInvalidRequest indicates the request parameters are invalid.
	ErrInvalidRequest = errors.New("docsearch: invalid request")

	// ErrRateLimited indicates the backend's rate limit has been exceeded.
	ErrRateLimited = errors.New("docsearch: rate limit exceeded")

	// ErrServerUnavailable indicates the backend is down, unreachable or failing (5xx).
	ErrServerUnavailable = errors.New("docsearch: server unavailable")
)

// APIError represents a non-success response from the backend API.
type APIError struct {
	Method     string // HTTP method of the failed request
	Path       string // Request path relative to the API base URL
	StatusCode int    // HTTP status code (0 for transport failures)
	Message    string // Error message from the backend body, or a generic fallback
	Err        error  // Wrapped sentinel (ErrUnauthorized, ErrNotFound, etc.)
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AuthError represents a failed session operation.
// It matches both its kind (ErrAuthExchangeFailed or ErrSessionInvalid) and its cause.
type AuthError struct {
	Op   string // "exchange" or "verify"
	Kind error  // ErrAuthExchangeFailed or ErrSessionInvalid
	Err  error  // Underlying cause (usually an *APIError)
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Op)
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Stream failure phases.
const (
	StreamPhaseConnect = "connect" // request could not be sent or got a non-success status
	StreamPhaseRead    = "read"    // the body failed mid-stream
	StreamPhaseServer  = "server"  // the backend reported an error event
)

// StreamError represents a failed streaming answer.
// It always matches ErrStreamFailed, plus its cause.
type StreamError struct {
	Query      string // Query the stream was opened for
	Phase      string // One of the StreamPhase constants
	StatusCode int    // HTTP status for connect failures (0 otherwise)
	Message    string // Server-provided message, if any
	Err        error  // Underlying cause
}

func (e *StreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("stream %q failed (%s, status %d): %s", e.Query, e.Phase, e.StatusCode, msg)
	}
	return fmt.Sprintf("stream %q failed (%s): %s", e.Query, e.Phase, msg)
}

func (e *StreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStreamFailed}
	}
	return []error{ErrStreamFailed, e.Err}
}

// MalformedEventError represents one stream line whose payload failed to parse.
type MalformedEventError struct {
	Line string // The offending line (truncated for very long lines)
	Err  error  // JSON decoding error, or nil for an over-long line
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed event %q: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed event %q", e.Line)
}

func (e *MalformedEventError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedEvent}
	}
	return []error{ErrMalformedEvent, e.Err}
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrSessionInvalid) ||
		errors.Is(err, ErrAuthExchangeFailed) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// HTTP 401/403 indicate auth issues
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}

	return false
}

// IsRetryable checks if an error is potentially retryable.
// Retrying is always the caller's decision; nothing in this module retries on its own.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Rate limits are always retryable
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	// Server unavailable is retryable
	if errors.Is(err, ErrServerUnavailable) {
		return true
	}

	// A stream cut off mid-way or timed out can be re-issued
	if errors.Is(err, ErrStreamIdleTimeout) {
		return true
	}
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Phase == StreamPhaseRead || streamErr.StatusCode >= 500
	}

	return false
}

// IsAborted reports whether err is a user or programmatic cancellation
// rather than a genuine failure.
func IsAborted(err error) bool {
	return err != nil && errors.Is(err, ErrStreamAborted)
}
