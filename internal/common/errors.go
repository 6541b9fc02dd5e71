package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Extraction taxonomy. Everything except ErrMergeWriteFailed is recovered per row or per document.
var (
	ErrTemporalResolutionFailed = errors.New("temporal resolution failed")
	ErrTableNotFound            = errors.New("table not found")
	ErrRowParseSkipped          = errors.New("row parse skipped")
	ErrUnrecognizedPathogen     = errors.New("unrecognized pathogen")
	ErrFallbackTimeout          = errors.New("fallback timeout")
	ErrFallbackUnavailable      = errors.New("fallback unavailable")
	ErrMergeWriteFailed         = errors.New("merge write failed")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrTemporalResolutionFailed, "TemporalResolutionFailed"},
	{ErrTableNotFound, "TableNotFound"},
	{ErrRowParseSkipped, "RowParseSkipped"},
	{ErrUnrecognizedPathogen, "UnrecognizedPathogen"},
	{ErrFallbackTimeout, "FallbackTimeout"},
	{ErrFallbackUnavailable, "FallbackUnavailable"},
	{ErrMergeWriteFailed, "MergeWriteFailed"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrNotFound, "NotFound"},
	{ErrDatabase, "Database"},
	{ErrValidation, "Validation"},
}

// ErrorKind maps err onto its taxonomy name, "" for nil and "Internal" for anything unknown.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapError prefixes err with message, keeping it unwrappable.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
