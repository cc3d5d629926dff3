package domain

import (
	"errors"
	"fmt"
)

// ErrBundleNotFound is reported by the model store when no complete, compatible
// bundle is available. It is a "must train" signal rather than a failure.
var ErrBundleNotFound = errors.New("model bundle not found")

// ValidationError reports caller-supplied input that cannot be used.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError means a component was used before it was ready
// (for example encoding before the scaler was fitted).
type ConfigurationError struct {
	Component string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s not configured: %s", e.Component, e.Message)
}

// SchemaMismatchError means a feature vector does not have the shape the loaded
// model bundle was trained on.
type SchemaMismatchError struct {
	Schema   string
	Expected int
	Got      int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema %s expects %d fields, got %d", e.Schema, e.Expected, e.Got)
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsSchemaMismatch reports whether err wraps a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var target *SchemaMismatchError
	return errors.As(err, &target)
}
