package utils

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadRequest       = fmt.Errorf("Bad request")
	ErrCapacityExceeded = fmt.Errorf("Cannot schedule more jobs: the maximum amount has been reached")
	ErrInvalidJob       = fmt.Errorf("Invalid job")
	ErrInvalidPost      = fmt.Errorf("Invalid post")
	ErrNoTask           = fmt.Errorf("There are no pending jobs yet")
	ErrNotFound         = fmt.Errorf("Not found")
	ErrParse            = fmt.Errorf("Parse error")
	ErrTransport        = fmt.Errorf("Transport failure")
)

type DetailedError interface {
	error
	Details() string
}

type detailedError struct {
	message string
	details string
}

func NewDetailedError(message, details string) error {
	return &detailedError{
		message: message,
		details: details,
	}
}

func (e *detailedError) Details() string {
	return e.details
}

func (e *detailedError) Error() string {
	return e.message
}

// Map errors to HTTP status codes
func HttpStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoTask):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidPost), errors.Is(err, ErrInvalidJob), errors.Is(err, ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, ErrCapacityExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
