package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds shared by the REST and socket transports
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("resource not found")
	ErrValidation      = errors.New("validation failed")
	ErrNotImplemented  = errors.New("not implemented")
)

// ChatError carries a user-facing message and the kind it belongs to
type ChatError struct {
	Kind    error
	Message string
}

func (e *ChatError) Error() string { return e.Message }

func (e *ChatError) Unwrap() error { return e.Kind }

// Unauthorized builds an authorization failure (authenticated but not allowed)
func Unauthorized(format string, args ...interface{}) error {
	return &ChatError{Kind: ErrUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a missing-resource failure
func NotFound(format string, args ...interface{}) error {
	return &ChatError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation builds an input validation failure
func Validation(format string, args ...interface{}) error {
	return &ChatError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NotImplemented marks a reserved operation
func NotImplemented(format string, args ...interface{}) error {
	return &ChatError{Kind: ErrNotImplemented, Message: fmt.Sprintf(format, args...)}
}

// StatusFromError maps an error kind onto an HTTP status
func StatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client. Unexpected errors are masked.
func PublicMessage(err error) string {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Message
	}
	if StatusFromError(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
