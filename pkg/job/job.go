package job

import (
	"encoding/json"
	"fmt"

	"github.com/srand/capataz/pkg/future"
	"github.com/srand/capataz/pkg/utils"
)

// Job identifiers wrap around at 31 bits.
type ID int

const IDMask = 0x7FFFFFFF

// Returns the identifier following id.
func (id ID) Next() ID {
	return (id + 1) & IDMask
}

// The lifecycle state of a job.
type State string

const (
	StatePending  State = "pending"
	StateAssigned State = "assigned"
	StateResolved State = "resolved"
	StateRejected State = "rejected"
)

// Completion handle of a job, settled with the job's result.
type Handle = future.Future[json.RawMessage]

// What to execute: a registered entrypoint, its dependencies and its arguments.
type Payload struct {
	Entrypoint string            `json:"entrypoint"`
	Deps       []string          `json:"deps"`
	Args       []json.RawMessage `json:"args"`
}

// A job as submitted for scheduling.
type Spec struct {
	Payload

	// Opaque information forwarded to drudgers.
	Info json.RawMessage `json:"info,omitempty"`

	// Added to the keys of every statistic recorded for the job.
	Tags map[string]string `json:"tags,omitempty"`
}

func (s Spec) Validate() error {
	if s.Entrypoint == "" {
		return fmt.Errorf("%w: missing entrypoint", utils.ErrInvalidJob)
	}
	return nil
}

// A scheduled job and its lifecycle.
type Job struct {
	ID ID `json:"id"`
	Spec

	ScheduledSince Timestamp `json:"scheduledSince"`
	AssignedSince  Timestamp `json:"assignedSince"`
	ResolvedSince  Timestamp `json:"resolvedSince"`
	RejectedSince  Timestamp `json:"rejectedSince"`

	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`

	Handle *Handle `json:"-"`
}

// Creates a pending job.
func New(id ID, spec Spec, now Timestamp) *Job {
	return &Job{
		ID:             id,
		Spec:           spec,
		ScheduledSince: now,
		AssignedSince:  Never,
		ResolvedSince:  Never,
		RejectedSince:  Never,
		Handle:         future.New[json.RawMessage](),
	}
}

// The state is derived from the timestamps.
func (j *Job) State() State {
	switch {
	case j.RejectedSince.IsSet():
		return StateRejected
	case j.ResolvedSince.IsSet():
		return StateResolved
	case j.AssignedSince.IsSet():
		return StateAssigned
	}
	return StatePending
}

func (j *Job) IsSettled() bool {
	state := j.State()
	return state == StateResolved || state == StateRejected
}

// Moves a pending job to assigned. Has no effect on other states.
func (j *Job) Assign(now Timestamp) bool {
	if j.State() != StatePending {
		return false
	}
	j.AssignedSince = now
	return true
}

// Moves an assigned job to resolved.
func (j *Job) Resolve(result json.RawMessage, now Timestamp) bool {
	if j.State() != StateAssigned {
		return false
	}
	j.Result = result
	j.ResolvedSince = now
	return true
}

// Moves an assigned job to rejected.
func (j *Job) Reject(reason json.RawMessage, now Timestamp) bool {
	if j.State() != StateAssigned {
		return false
	}
	j.Error = reason
	j.RejectedSince = now
	return true
}

// Returns a shallow copy of the job sharing its handle.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}

func (j *Job) String() string {
	return fmt.Sprintf("job %d (%s, %s)", j.ID, j.Entrypoint, j.State())
}
