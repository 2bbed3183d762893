package job

import (
	"encoding/json"
	"errors"
	"fmt"
)

// The rejection reason of a job which failed on a drudger.
type ExecutionError struct {
	ID     ID
	Reason json.RawMessage
}

func NewExecutionError(id ID, reason json.RawMessage) *ExecutionError {
	return &ExecutionError{ID: id, Reason: reason}
}

func (e *ExecutionError) Error() string {
	var message string
	if err := json.Unmarshal(e.Reason, &message); err == nil {
		return fmt.Sprintf("job %d failed: %s", e.ID, message)
	}
	return fmt.Sprintf("job %d failed: %s", e.ID, string(e.Reason))
}

// Returns the reason a job was rejected with, as JSON.
func ReasonOf(err error) json.RawMessage {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Reason
	}

	data, _ := json.Marshal(err.Error())
	return data
}
