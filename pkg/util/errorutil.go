package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Machine-readable reason codes surfaced to API clients.
const (
	CodeValidationFailed        = "VALIDATION_FAILED"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeAlreadyTerminal         = "ALREADY_TERMINAL"
	CodePolicyNotFound          = "POLICY_NOT_FOUND"
	CodeAutomationDepthExceeded = "AUTOMATION_DEPTH_EXCEEDED"
	CodeNotFound                = "NOT_FOUND"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeConflict                = "CONFLICT"
	CodeInternalError           = "INTERNAL_ERROR"
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

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewInvalidTransition rejects a status change the workflow does not allow.
func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition, "status transition not allowed", http.StatusUnprocessableEntity, map[string]any{
		"from": from,
		"to":   to,
	})
}

// NewAlreadyTerminal rejects mutations on a closed ticket.
func NewAlreadyTerminal(status string) error {
	return NewDomainError(CodeAlreadyTerminal, "ticket is terminal", http.StatusConflict, map[string]any{
		"status": status,
	})
}

// NewPolicyNotFound reports a missing SLA policy for a scope. Callers treat
// this as non-blocking: the ticket proceeds without SLA windows.
func NewPolicyNotFound(details map[string]any) error {
	return NewDomainError(CodePolicyNotFound, "no SLA policy for scope", http.StatusNotFound, details)
}

// NewAutomationDepthExceeded aborts the remainder of an automation chain.
func NewAutomationDepthExceeded(depth int) error {
	return NewDomainError(CodeAutomationDepthExceeded, "automation recursion limit reached", http.StatusUnprocessableEntity, map[string]any{
		"depth": depth,
	})
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
		Code:       CodeInternalError,
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
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// HasCode reports whether err carries the given reason code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
