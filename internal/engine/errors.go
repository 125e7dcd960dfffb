// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Common engine errors
var (
	ErrBrowserNotFound  = errors.New("chrome browser not found")
	ErrBrowserCrash     = errors.New("browser crashed")
	ErrTimeout          = errors.New("request timeout")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrNetworkError     = errors.New("network error")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrParseError       = errors.New("failed to parse response")
	ErrSessionNotFound  = errors.New("session not found")
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeValidation   ErrorCode = "VALIDATION"
	ErrCodeBrowserCrash ErrorCode = "BROWSER_CRASH"
	ErrCodeNetworkError ErrorCode = "NETWORK_ERROR"
	ErrCodeHTTPStatus   ErrorCode = "HTTP_STATUS"
	ErrCodeParseError   ErrorCode = "PARSE_ERROR"
	ErrCodeSessionError ErrorCode = "SESSION_ERROR"
)

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first EngineError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
