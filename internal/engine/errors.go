// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Plugin contract errors
var (
	// ErrParseNotImplemented is returned when a plugin reaches the default
	// parse step without providing its own.
	ErrParseNotImplemented = errors.New("parse step not implemented")

	// ErrMissingCapability is returned when a plugin cannot perform a step it
	// was asked to, e.g. rendering without a browser.
	ErrMissingCapability = errors.New("missing capability")

	// ErrNoData is returned by extraction helpers when the page lacks what
	// they look for. Fetch exhaustion is not an error and never returns it.
	ErrNoData = errors.New("no data")
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeNotImplemented    ErrorCode = "NOT_IMPLEMENTED"
	ErrCodeMissingCapability ErrorCode = "MISSING_CAPABILITY"
	ErrCodeValidation        ErrorCode = "VALIDATION"
	ErrCodeParseError        ErrorCode = "PARSE_ERROR"
	ErrCodeSessionError      ErrorCode = "SESSION_ERROR"
)

// EngineError wraps errors with the plugin that produced them
type EngineError struct {
	Code       ErrorCode
	Plugin     string
	Message    string
	Underlying error
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	prefix := string(e.Code)
	if e.Plugin != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Code, e.Plugin)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is matches another EngineError by code, or the underlying error otherwise
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, plugin, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Plugin:     plugin,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error, reported with it in logs
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// Code extracts the ErrorCode from err, or "" if it carries none.
func Code(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
