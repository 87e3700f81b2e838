// Package api provides an HTTP client for the PicKoala REST API with bearer
// authentication, transparent token refresh on 401, and error translation.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, api.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("api: bad request")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrForbidden    = errors.New("api: forbidden")
	ErrNotFound     = errors.New("api: not found")
	ErrConflict     = errors.New("api: conflict")
	ErrTooLarge     = errors.New("api: payload too large")
	ErrInvalid      = errors.New("api: unprocessable entity")
	ErrThrottled    = errors.New("api: throttled")
	ErrServerError  = errors.New("api: server error")
)

// ErrReauthRequired is returned when a 401 could not be recovered by
// refreshing the access token. The session has been cleared and the user
// must log in again.
var ErrReauthRequired = errors.New("api: re-authentication required")

// ErrCredentialsClosed is wrapped by Credentials implementations that can no
// longer refresh because they were shut down. It does not invalidate the
// session.
var ErrCredentialsClosed = errors.New("api: credentials closed")

// HTTPError is a server-rejected request. Detail is the raw server message;
// Message is Detail after translation for display.
type HTTPError struct {
	StatusCode int
	RequestID  string
	Detail     string
	Message    string
	RetryAfter time.Duration // from the Retry-After header, 0 if absent
	Err        error         // sentinel, for errors.Is()
}

func (e *HTTPError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NetworkError is a transport failure: the request never produced an HTTP
// response. Always retryable at the chunk level.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("api: %s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusRequestEntityTooLarge:
		return ErrTooLarge
	case http.StatusUnprocessableEntity:
		return ErrInvalid
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// IsRetryable reports whether err is worth retrying at the chunk level:
// network failures, request timeouts, throttling, and 5xx responses.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return isRetryableStatus(httpErr.StatusCode)
	}

	return false
}

// isRetryableStatus reports whether the given HTTP status code should be retried.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		// Cloudflare tunnel origin errors (520-527).
		return code >= 520 && code <= 527
	}
}
