package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. The first five form the closed set surfaced by the domain core.
const (
	CodeInfrastructure    = "INFRASTRUCTURE_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeImmutable         = "IMMUTABLE_ENTITY"
	CodeValidation        = "VALIDATION_FAILED"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks; matching is by code.
var (
	ErrInfrastructure    = &DomainError{Code: CodeInfrastructure}
	ErrNotFound          = &DomainError{Code: CodeNotFound}
	ErrInvalidTransition = &DomainError{Code: CodeInvalidTransition}
	ErrImmutable         = &DomainError{Code: CodeImmutable}
	ErrValidation        = &DomainError{Code: CodeValidation}
	ErrUnauthorized      = &DomainError{Code: CodeUnauthorized}
	ErrConflict          = &DomainError{Code: CodeConflict}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewInvalidTransition reports a state machine rejection.
func NewInvalidTransition(entity, from, to, reason string) error {
	details := map[string]any{
		"entity": entity,
		"from":   from,
		"to":     to,
	}
	msg := fmt.Sprintf("%s cannot transition from %s to %s", entity, from, to)
	if reason != "" {
		details["reason"] = reason
		msg += ": " + reason
	}
	return NewDomainError(CodeInvalidTransition, msg, http.StatusConflict, details)
}

// NewImmutable reports a mutation attempt on a closed or terminal entity.
func NewImmutable(entity, id, reason string) error {
	return NewDomainError(CodeImmutable,
		fmt.Sprintf("%s %s is immutable: %s", entity, id, reason),
		http.StatusConflict,
		map[string]any{"entity": entity, "id": id})
}

// NewInfrastructure wraps a storage or connectivity failure. The cause is kept for
// logging but never rendered to callers.
func NewInfrastructure(op string, err error) error {
	return &DomainError{
		Code:       CodeInfrastructure,
		Message:    "storage unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"op": op},
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf returns the error code carried by err, or CodeInternal.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}
