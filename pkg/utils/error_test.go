package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHttpStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HttpStatus(nil))
	assert.Equal(t, http.StatusNotFound, HttpStatus(ErrNoTask))
	assert.Equal(t, http.StatusNotFound, HttpStatus(fmt.Errorf("job 3: %w", ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, HttpStatus(ErrInvalidPost))
	assert.Equal(t, http.StatusServiceUnavailable, HttpStatus(fmt.Errorf("%w (5000)", ErrCapacityExceeded)))
	assert.Equal(t, http.StatusInternalServerError, HttpStatus(errors.New("disk on fire")))
}

func TestDetailedError(t *testing.T) {
	err := NewDetailedError("Command failed", "stderr output")

	var detailed DetailedError
	assert.True(t, errors.As(err, &detailed))
	assert.Equal(t, "Command failed", detailed.Error())
	assert.Equal(t, "stderr output", detailed.Details())
}
