package errx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "session store operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "session not found"
	// StoreErrorMessage describes record store failures.
	StoreErrorMessage = "record store operation failed"
	// StoreNotFoundMessage describes a missing record.
	StoreNotFoundMessage = "record not found"
	// InferenceErrorMessage describes inference backend failures.
	InferenceErrorMessage = "inference backend unavailable"
	// InferenceTimeoutMessage describes an inference call that ran out of time.
	InferenceTimeoutMessage = "inference backend timed out"
)

// Error wraps an underlying error with an HTTP status and safe message.
type Error struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Invalid reports a caller mistake as a 400.
func Invalid(message string) *Error {
	return New(nil, http.StatusBadRequest, message)
}

// WrapRedis maps Redis errors to the unified Error type with appropriate status codes.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}

// WrapStore maps database/sql errors from the record store.
func WrapStore(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return New(err, http.StatusNotFound, StoreNotFoundMessage)
	}
	return New(err, http.StatusBadGateway, StoreErrorMessage)
}

// WrapInference maps inference backend failures; deadlines become 504.
func WrapInference(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(err, http.StatusGatewayTimeout, InferenceTimeoutMessage)
	}
	return New(err, http.StatusBadGateway, InferenceErrorMessage)
}

// StatusOf returns the HTTP status and safe message carried by err.
// Errors that are not *Error map to 500 with SystemErrorMessage.
func StatusOf(err error) (int, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Status, e.Message
	}
	return http.StatusInternalServerError, SystemErrorMessage
}
