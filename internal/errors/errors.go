// Package errors provides structured error types for the engine. Every error
// carries a category, a code and a retryable flag so ingest, persistence and
// API layers can react consistently.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the component that raised them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryGallery    ErrorCategory = "GALLERY"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryIngest     ErrorCategory = "INGEST"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeMalformedEvent = "MALFORMED_EVENT"
	CodeInvalidFilter  = "INVALID_FILTER"

	// Storage codes
	CodeNotFound           = "NOT_FOUND"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"

	// Gallery codes
	CodeGalleryUnavailable = "GALLERY_UNAVAILABLE"

	// Config codes
	CodeInvalidZone = "INVALID_ZONE"

	// Ingest codes
	CodeBackpressure   = "BACKPRESSURE"
	CodeCameraInactive = "CAMERA_INACTIVE"
	CodeCameraLimit    = "CAMERA_LIMIT"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Sentinels for errors.Is comparisons. Matching is by category and code.
var (
	ErrMalformedEvent     = New(ErrCategoryValidation, CodeMalformedEvent, "malformed detection event")
	ErrNotFound           = New(ErrCategoryStorage, CodeNotFound, "not found")
	ErrPersistence        = New(ErrCategoryStorage, CodePersistenceFailure, "persistence failure")
	ErrGalleryUnavailable = New(ErrCategoryGallery, CodeGalleryUnavailable, "suspect gallery unavailable")
	ErrBackpressure       = New(ErrCategoryIngest, CodeBackpressure, "camera queue full")
	ErrCameraInactive     = New(ErrCategoryIngest, CodeCameraInactive, "camera is inactive")
	ErrCameraLimit        = New(ErrCategoryIngest, CodeCameraLimit, "camera limit reached")
)

// EngineError is the structured error type used throughout the engine.
type EngineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new EngineError.
func New(category ErrorCategory, code, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new EngineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *EngineError {
	return &EngineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// Malformed builds a MalformedEvent error for the given reason.
func Malformed(format string, args ...interface{}) *EngineError {
	return New(ErrCategoryValidation, CodeMalformedEvent, fmt.Sprintf(format, args...))
}

// NotFound builds a NotFound error naming the missing resource.
func NotFound(resource string, id interface{}) *EngineError {
	return New(ErrCategoryStorage, CodeNotFound, fmt.Sprintf("%s %v not found", resource, id)).
		WithDetails(map[string]interface{}{"resource": resource, "id": id})
}

// WithDetails returns a copy of the error with additional details.
func (e *EngineError) WithDetails(details map[string]interface{}) *EngineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an EngineError.
func GetCategory(err error) ErrorCategory {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an EngineError.
func GetCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch category {
	case ErrCategoryStorage:
		return code == CodePersistenceFailure
	case ErrCategoryGallery:
		return true
	case ErrCategoryIngest:
		return code == CodeBackpressure
	default:
		return false
	}
}
