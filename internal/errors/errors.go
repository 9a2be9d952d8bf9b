// Package errors defines the typed error taxonomy surfaced by the core
// services. The transport layer maps codes to HTTP status codes; the core
// never swallows an authorization or validation failure.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeConflict        Code = "CONFLICT"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeNotAMember      Code = "NOT_A_MEMBER"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeStorageFailure  Code = "STORAGE_FAILURE"
)

// ServiceError is the error type returned by every core operation that fails
// for a reason the caller can act on.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]any
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *ServiceError) Unwrap() error { return e.cause }

// Is matches service errors by code and message so package-level sentinels
// compare with errors.Is without colliding across a shared code.
func (e *ServiceError) Is(target error) bool {
	var other *ServiceError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// WithDetails attaches a key/value pair for transport-layer serialization.
func (e *ServiceError) WithDetails(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func newError(code Code, status int, message string, cause error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

// NotFound reports an absent entity.
func NotFound(entity, id string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s %s not found", entity, id), nil)
}

// Forbidden reports an authenticated caller lacking a capability.
func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// Unauthenticated reports a missing, invalid, expired, or revoked credential.
func Unauthenticated(message string) *ServiceError {
	return newError(CodeUnauthenticated, http.StatusUnauthorized, message, nil)
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

// InvalidInput reports a validation failure.
func InvalidInput(message string) *ServiceError {
	return newError(CodeInvalidInput, http.StatusBadRequest, message, nil)
}

// NotAMember reports an actor with no relationship to the project at all.
func NotAMember(projectID string) *ServiceError {
	return newError(CodeNotAMember, http.StatusForbidden, fmt.Sprintf("not a member of project %s", projectID), nil)
}

// RateLimited reports a caller exceeding the request budget.
func RateLimited(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window), nil)
}

// Storage wraps an internal persistence failure. The core never retries;
// retry policy belongs to the caller.
func Storage(op string, cause error) *ServiceError {
	return newError(CodeStorageFailure, http.StatusInternalServerError, op, cause)
}

// GetServiceError extracts a *ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
