package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to API callers.
const (
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeInvalidClaims     = "INVALID_CLAIMS"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeNoOpUpdate        = "NO_OP_UPDATE"
	CodeAlreadyWatching   = "ALREADY_WATCHING"
	CodeNotWatching       = "NOT_WATCHING"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeVersionConflict   = "VERSION_CONFLICT"
	CodeValidation        = "VALIDATION_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
)

// Soft warning codes reported next to a successful result.
const (
	WarnNoPolicyForPriority = "NO_POLICY_FOR_PRIORITY"
	WarnEmailDelivery       = "EMAIL_DELIVERY_FAILED"
)

// Sentinels for errors.Is checks. DomainError.Is compares codes, so a
// DomainError with extra details still matches its sentinel.
var (
	ErrUnauthenticated   = NewDomainError(CodeUnauthenticated, "unauthenticated", http.StatusUnauthorized, nil)
	ErrInvalidClaims     = NewDomainError(CodeInvalidClaims, "invalid claims", http.StatusUnauthorized, nil)
	ErrForbidden         = NewDomainError(CodeForbidden, "forbidden", http.StatusForbidden, nil)
	ErrNotFound          = NewDomainError(CodeNotFound, "not found", http.StatusNotFound, nil)
	ErrNoOpUpdate        = NewDomainError(CodeNoOpUpdate, "update does not change any field", http.StatusUnprocessableEntity, nil)
	ErrAlreadyWatching   = NewDomainError(CodeAlreadyWatching, "user already watches this ticket", http.StatusConflict, nil)
	ErrNotWatching       = NewDomainError(CodeNotWatching, "user does not watch this ticket", http.StatusConflict, nil)
	ErrInvalidTransition = NewDomainError(CodeInvalidTransition, "status transition not allowed", http.StatusUnprocessableEntity, nil)
	ErrVersionConflict   = NewDomainError(CodeVersionConflict, "ticket was modified concurrently", http.StatusConflict, nil)
	ErrValidation        = NewDomainError(CodeValidation, "validation failed", http.StatusBadRequest, nil)
	ErrUnavailable       = NewDomainError(CodeUnavailable, "service unavailable", http.StatusServiceUnavailable, nil)
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

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
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

func NewUnauthenticated(message string) error {
	return NewDomainError(CodeUnauthenticated, message, http.StatusUnauthorized, nil)
}

func NewInvalidClaims(message string) error {
	return NewDomainError(CodeInvalidClaims, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot move ticket from %s to %s", from, to),
		http.StatusUnprocessableEntity,
		map[string]any{"from": from, "to": to})
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
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts err into a DomainError, keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// Warning is a soft failure: the primary operation committed, but an
// auxiliary computation did not.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
