package common

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns a combined error wrapping ErrValidation
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case time.Time:
		if v.IsZero() {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

// Percent accepts a nil *float64 or a value inside [0, 100].
func Percent(fieldName string, value interface{}) *ValidationError {
	p, ok := value.(*float64)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a nullable number"}
	}
	if p == nil {
		return nil
	}
	if *p < 0 || *p > 100 {
		return &ValidationError{Field: fieldName, Value: *p, Message: "must be within [0, 100]"}
	}
	return nil
}

// Weekday returns a rule requiring a time.Time on the given weekday.
func Weekday(day time.Weekday) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		t, ok := value.(time.Time)
		if !ok {
			return &ValidationError{Field: fieldName, Value: value, Message: "must be a date"}
		}
		if t.Weekday() != day {
			return &ValidationError{Field: fieldName, Value: t.Format("2006-01-02"), Message: "must fall on " + day.String()}
		}
		return nil
	}
}

// WeekRange returns a rule requiring an ISO week number in [1, 53].
func WeekRange(fieldName string, value interface{}) *ValidationError {
	w, ok := value.(int)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be an integer"}
	}
	if w < 1 || w > 53 {
		return &ValidationError{Field: fieldName, Value: w, Message: "must be within [1, 53]"}
	}
	return nil
}

// IsValidation reports whether err came from a Validator.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
