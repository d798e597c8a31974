package verifyapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCodeEmailFailed is the structured code the backend returns when the
// verification email could not be delivered.
const ErrorCodeEmailFailed = "verification_email_failed"

var (
	// ErrSessionInvalid is returned on 401/403: the login attempt is no
	// longer valid and the caller must wipe session state and re-login.
	ErrSessionInvalid = errors.New("session is no longer valid")

	// ErrDeliveryFailed is returned on 503 or the structured email-failed
	// code: the code was not sent and the caller may retry later.
	ErrDeliveryFailed = errors.New("verification code could not be sent")

	// ErrCodeExpired is returned when the server reports an expired code.
	ErrCodeExpired = errors.New("verification code has expired")

	// ErrCodeInvalid is returned when the server reports an invalid code.
	ErrCodeInvalid = errors.New("verification code is invalid")

	// ErrNetwork is returned when no HTTP response was received at all.
	ErrNetwork = errors.New("network error")
)

// APIError carries the raw server failure alongside its classification.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Kind       error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// classifyError maps an HTTP failure response to the client error taxonomy.
// The expired/invalid split relies on substring matching because the server
// does not return a structured code for those cases.
func classifyError(statusCode int, body ErrorResponse) error {
	apiErr := &APIError{
		StatusCode: statusCode,
		Code:       body.Error,
		Message:    body.Message,
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		apiErr.Kind = ErrSessionInvalid
	case statusCode == http.StatusServiceUnavailable || body.Error == ErrorCodeEmailFailed:
		apiErr.Kind = ErrDeliveryFailed
	case strings.Contains(strings.ToLower(apiErr.Message), "expired"):
		apiErr.Kind = ErrCodeExpired
	case strings.Contains(strings.ToLower(apiErr.Message), "invalid"):
		apiErr.Kind = ErrCodeInvalid
	}

	return apiErr
}
