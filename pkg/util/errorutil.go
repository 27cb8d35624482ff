package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Machine codes surfaced by the auth layer.
const (
	CodeMissingAuthToken      = "MISSING_AUTH_TOKEN"
	CodeEmptyAuthToken        = "EMPTY_AUTH_TOKEN"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeAuthError             = "AUTH_ERROR"
	CodeUserFetchError        = "USER_FETCH_ERROR"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeAccountInactive       = "ACCOUNT_INACTIVE"
	CodeForbiddenRole         = "FORBIDDEN_ROLE"
	CodeForbiddenOwnership    = "FORBIDDEN_OWNERSHIP"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Summary    string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
	// AuthLayer selects the auth-layer response shape
	// ({success, error, message, code}) over the business shape
	// ({error, details}).
	AuthLayer bool
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

// NewAuthFailure constructs an auth-layer failure with a machine code.
func NewAuthFailure(code, summary, message string, status int) *DomainError {
	return &DomainError{
		Code:       code,
		Summary:    summary,
		Message:    message,
		HTTPStatus: status,
		AuthLayer:  true,
	}
}

// WithDetails attaches structured details to the error.
func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	e.Details = details
	return e
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewBadRequest(message string) error {
	return NewDomainError("BAD_REQUEST", message, http.StatusBadRequest, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConsistencyError marks a partial-failure state where an identity-side
// effect succeeded but the correlated store update failed. Never retried
// silently.
func NewConsistencyError(err error) error {
	return &DomainError{
		Code:       "STATE_CONSISTENCY_ERROR",
		Message:    "stored state may be inconsistent; manual retry required",
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
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
