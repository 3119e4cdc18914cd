// Package errors provides a lightweight structured error type (ShipperError)
// for category-based classification of pipeline failures. The poll loop uses
// the category to decide how far a failure may propagate.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a tagshipper error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryGit      ErrorCategory = "git"
	CategoryDelivery ErrorCategory = "delivery"

	// Pipeline stage errors
	CategoryLedger     ErrorCategory = "ledger"
	CategorySnapshot   ErrorCategory = "snapshot"
	CategoryArchive    ErrorCategory = "archive"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// ShipperError is a structured error with category, severity, and context
type ShipperError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for ShipperError
type ContextFields map[string]any

// Error implements the error interface
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *ShipperError) WithContext(key string, value any) *ShipperError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// ContextString returns a string context value, or "" when absent.
func (e *ShipperError) ContextString(key string) string {
	if e == nil || e.Context == nil {
		return ""
	}
	if s, ok := e.Context[key].(string); ok {
		return s
	}
	return ""
}

// New creates a new ShipperError
func New(category ErrorCategory, severity ErrorSeverity, message string) *ShipperError {
	return &ShipperError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new ShipperError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *ShipperError {
	return &ShipperError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// As extracts the outermost ShipperError from an error chain.
func As(err error) (*ShipperError, bool) {
	var se *ShipperError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCategory checks if an error chain carries a ShipperError of the given category
func IsCategory(err error, category ErrorCategory) bool {
	if se, ok := As(err); ok {
		return se.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if none is present
func GetCategory(err error) ErrorCategory {
	if se, ok := As(err); ok {
		return se.Category
	}
	return CategoryInternal
}

// IsFatal reports whether the error terminates the process.
func IsFatal(err error) bool {
	if se, ok := As(err); ok {
		return se.Severity == SeverityFatal
	}
	return false
}
