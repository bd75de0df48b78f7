// Package apierr carries an HTTP status and a stable code alongside an error so
// handlers can turn store and remote failures into consistent responses.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeRemote     = "remote_failed"
	CodeInternal   = "internal_error"
)

var (
	// ErrNotFound is returned by the store when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by the store when a unique key is already taken.
	ErrConflict = errors.New("already exists")
	// ErrRemoteUnavailable is returned when a remote function is not configured.
	ErrRemoteUnavailable = errors.New("remote service not configured")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, CodeValidation, err)
}

func Validationf(format string, args ...interface{}) *Error {
	return Validation(fmt.Errorf(format, args...))
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf("%s not found", what))
}

func Remote(err error) *Error {
	return New(http.StatusBadGateway, CodeRemote, err)
}

// From maps err onto an *Error. Store sentinels keep their message, which is
// written to be shown to users; anything unrecognised becomes a generic 500.
func From(err error) *Error {
	var apiErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, ErrNotFound):
		return New(http.StatusNotFound, CodeNotFound, err)
	case errors.Is(err, ErrConflict):
		return New(http.StatusConflict, CodeConflict, err)
	case errors.Is(err, ErrRemoteUnavailable):
		return New(http.StatusServiceUnavailable, CodeRemote, err)
	default:
		return New(http.StatusInternalServerError, CodeInternal, errors.New("something went wrong, please try again"))
	}
}

// kindError is a user-facing message that matches one of the sentinels under
// errors.Is.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Conflictf builds a unique-key violation with a message fit for users.
func Conflictf(format string, args ...interface{}) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrConflict}
}

// NotFoundf builds a missing-record error with a message fit for users.
func NotFoundf(format string, args ...interface{}) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: ErrNotFound}
}
