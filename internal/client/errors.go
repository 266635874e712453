package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrAuthentication is wrapped by every AuthError.
	ErrAuthentication = errors.New("authentication failed")
	// ErrOriginUnavailable means the account advertises no camera service.
	ErrOriginUnavailable = errors.New("camera service origin unavailable")
)

const maxErrorBody = 512

// AuthError reports a rejected login, token exchange, or a request that kept
// answering 401 after re-authentication.
type AuthError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: authentication failed (status %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: authentication failed (status %d): %s", e.Op, e.StatusCode, e.Body)
}

func (e *AuthError) Unwrap() error { return ErrAuthentication }

// HTTPError is any other non-2xx answer.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is an authentication failure or a 401.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrAuthentication) {
		return true
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}

func newHTTPError(op string, resp *resty.Response) *HTTPError {
	return &HTTPError{Op: op, StatusCode: resp.StatusCode(), Body: truncate(resp.String())}
}

func newAuthError(op string, resp *resty.Response) *AuthError {
	return &AuthError{Op: op, StatusCode: resp.StatusCode(), Body: truncate(resp.String())}
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
