package inference

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedResponse reports a response that carried neither an error nor
// a usable payload, e.g. a flashcard answer with no card list in it.
var ErrMalformedResponse = errors.New("could not parse response")

// APIError represents a non-2xx response from the inference service.
type APIError struct {
	StatusCode int            `json:"-"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		if e.RequestID != "" {
			return fmt.Sprintf("api error: status=%d request_id=%s message=%s", e.StatusCode, e.RequestID, e.Message)
		}
		return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("api error: status=%d request_id=%s", e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

// ServiceError is an error reported inside a 2xx body via its "error" field.
type ServiceError struct {
	Message string
	Details any
}

func (e *ServiceError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("inference service: %s (%v)", e.Message, e.Details)
	}
	return "inference service: " + e.Message
}

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// BadRequestError indicates a 4xx request problem (e.g., 400/422 validation).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// ServerError indicates 5xx errors from the service.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("service error: %s", e.APIError.Error()) }

// UnreachableError indicates the inference service could not be contacted.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("inference service unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("inference service unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
