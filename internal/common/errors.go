package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every failure surfaced by the pipeline wraps exactly one of
// these sentinels so callers can branch with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrDuplicateRecord      = errors.New("duplicate record")
	ErrValidationFailed     = errors.New("validation failed")
	ErrExtractionIncomplete = errors.New("extraction incomplete")
	ErrResponseUnparseable  = errors.New("response unparseable")
	ErrNotFound             = errors.New("resource not found")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

// AppError carries a kind, a human-readable message and, for validation
// failures, the offending field and violated rule.
type AppError struct {
	Kind    error
	Message string
	Field   string
	Rule    string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Kind
}

func (e *AppError) Is(target error) bool {
	return e.Kind == target
}

func NewAppError(kind error, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

func NewInvalidInput(format string, args ...any) *AppError {
	return &AppError{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NewDuplicateRecord(invoiceNumber string) *AppError {
	return &AppError{
		Kind:    ErrDuplicateRecord,
		Message: fmt.Sprintf("an invoice with number %q already exists", invoiceNumber),
	}
}

// NewValidationFailed identifies the field and the rule it violated.
func NewValidationFailed(field, rule, format string, args ...any) *AppError {
	return &AppError{
		Kind:    ErrValidationFailed,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
		Rule:    rule,
	}
}

func NewExtractionIncomplete(status string) *AppError {
	return &AppError{
		Kind:    ErrExtractionIncomplete,
		Message: fmt.Sprintf("model run did not complete: status %q", status),
	}
}

func NewNotFound(what string) *AppError {
	return &AppError{Kind: ErrNotFound, Message: what + " not found"}
}

// HTTPStatus maps an error kind to its transport status. Used only by the
// server glue; the core never reasons about HTTP.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateRecord):
		return http.StatusConflict
	case errors.Is(err, ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrExtractionIncomplete),
		errors.Is(err, ErrResponseUnparseable),
		errors.Is(err, ErrStorageUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
