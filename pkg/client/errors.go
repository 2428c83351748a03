package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled while
	// waiting to retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// Kind classifies an error by what the caller can do about it.
type Kind string

const (
	// KindConfiguration marks client construction problems.
	KindConfiguration Kind = "configuration"

	// KindValidation marks requests the API rejected as malformed.
	KindValidation Kind = "validation"

	// KindAuthentication marks a missing or unknown API key.
	KindAuthentication Kind = "authentication"

	// KindAuthorization marks a key without access to the resource.
	KindAuthorization Kind = "authorization"

	// KindNotFound marks a resource that does not exist.
	KindNotFound Kind = "not_found"

	// KindRateLimit marks quota exhaustion reported by the API.
	KindRateLimit Kind = "rate_limit"

	// KindServer marks upstream 5xx failures.
	KindServer Kind = "server"

	// KindNetwork marks transport failures without an HTTP response.
	KindNetwork Kind = "network"
)

// Retryable reports whether errors of this kind may succeed on a later
// attempt. Transient conditions are retryable; anything the request itself
// caused is not, retrying those only burns quota.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindServer, KindNetwork:
		return true
	default:
		return false
	}
}

// Error is a catalogue API error carrying enough context for callers to
// branch on: the kind, the HTTP status, the upstream description and any
// server-provided retry hint.
type Error struct {
	Kind        Kind
	StatusCode  int    // zero when no response was received
	Path        string // request path
	Message     string
	Description string        // upstream description, when the API sent one
	RetryAfter  time.Duration // server wait hint, zero when absent
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "catalog %s error", e.Kind)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " on %s", e.Path)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindValidation
	default:
		return KindServer
	}
}

// IsNotFound reports whether err is a catalogue not-found error.
func IsNotFound(err error) bool {
	return hasKind(err, KindNotFound)
}

// IsRateLimited reports whether err is a catalogue rate limit error.
func IsRateLimited(err error) bool {
	return hasKind(err, KindRateLimit)
}

// IsAuthFailure reports whether err is an authentication or authorization
// error. Both mean the configured API key cannot make this request.
func IsAuthFailure(err error) bool {
	return hasKind(err, KindAuthentication) || hasKind(err, KindAuthorization)
}

// IsValidation reports whether err marks a request the API rejected.
func IsValidation(err error) bool {
	return hasKind(err, KindValidation)
}

func hasKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// RetryAfterHint extracts the server's Retry-After hint from err, when the
// response carried one.
func RetryAfterHint(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}
