package dexcom

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is reported by Dexcom as SessionIdNotFound
var ErrSessionExpired = errors.New("session expired: SessionIdNotFound")

// ConfigurationError reports missing credentials or an unknown region
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// AuthenticationError wraps a failure in the account/session handshake
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return "authentication error: " + e.Err.Error()
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// RequestError reports a non-success response from a data query
type RequestError struct {
	StatusCode int
	Code       string // Vendor error code, if any
	Message    string // Vendor error message, if any
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("request failed with status %d: %v", e.StatusCode, e.Err)
	case e.Message != "":
		return fmt.Sprintf("server error: %s", e.Message)
	default:
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// EmptyResultError reports a response body that is not a list of readings
type EmptyResultError struct {
	Body string
}

func (e *EmptyResultError) Error() string {
	if e.Body == "" {
		return "no readings available: empty response"
	}
	return "no readings available: unexpected response " + e.Body
}

// MalformedReadingError reports a reading with a missing or invalid field
type MalformedReadingError struct {
	Field string
}

func (e *MalformedReadingError) Error() string {
	return fmt.Sprintf("invalid reading format: missing or invalid %s", e.Field)
}
