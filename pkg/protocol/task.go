package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/utils"
)

// A job as sent to a drudger.
type TaskJob struct {
	ID            job.ID            `json:"id"`
	Info          json.RawMessage   `json:"info,omitempty"`
	Entrypoint    string            `json:"entrypoint"`
	Deps          []string          `json:"deps"`
	Args          []json.RawMessage `json:"args"`
	AssignedSince job.Timestamp     `json:"assignedSince"`
}

func NewTaskJob(j *job.Job, assignedSince job.Timestamp) TaskJob {
	return TaskJob{
		ID:            j.ID,
		Info:          j.Info,
		Entrypoint:    j.Entrypoint,
		Deps:          j.Deps,
		Args:          j.Args,
		AssignedSince: assignedSince,
	}
}

// Returns the payload to execute.
func (t *TaskJob) Payload() job.Payload {
	return job.Payload{
		Entrypoint: t.Entrypoint,
		Deps:       t.Deps,
		Args:       t.Args,
	}
}

// A bundle of jobs handed out to a drudger in one poll.
type Task struct {
	TaskID          string        `json:"taskId"`
	ServerStartTime job.Timestamp `json:"serverStartTime"`
	Jobs            []TaskJob     `json:"jobs"`
}

func (t *Task) IsEmpty() bool {
	return len(t.Jobs) == 0
}

// The outcome of one job as reported by a drudger.
type PostedJob struct {
	ID     job.ID          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`

	// Execution time in milliseconds.
	Time float64 `json:"time"`

	AssignedSince  job.Timestamp `json:"assignedSince"`
	ClientPlatform string        `json:"clientPlatform,omitempty"`

	// Remote address of the poster, filled in by the coordinator.
	PostedFrom string `json:"-"`
}

// A missing assignedSince decodes as job.Never.
func (p *PostedJob) UnmarshalJSON(data []byte) error {
	type plain PostedJob
	decoded := plain{AssignedSince: job.Never}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = PostedJob(decoded)
	return nil
}

// Returns true if the drudger reported a failure.
func (p *PostedJob) Failed() bool {
	return len(p.Error) > 0 && string(p.Error) != "null"
}

// The body of a result post.
type Post struct {
	Jobs []*PostedJob `json:"jobs"`

	// Number of posted jobs dropped because not even their id was readable.
	Malformed int `json:"-"`
}

// Parses a result post. Returns utils.ErrInvalidPost unless the body is an
// object with a jobs array. A job that cannot be decoded does not fail the
// others: it is kept with an invalid time if its id is readable, and
// dropped otherwise.
func ParsePost(data []byte, postedFrom string) (*Post, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidPost, err)
	}

	raw := bytes.TrimSpace(fields["jobs"])
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: jobs is not an array", utils.ErrInvalidPost)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidPost, err)
	}

	post := &Post{Jobs: make([]*PostedJob, 0, len(entries))}
	for _, entry := range entries {
		posted, ok := parsePostedJob(entry)
		if !ok {
			post.Malformed++
			continue
		}
		posted.PostedFrom = postedFrom
		post.Jobs = append(post.Jobs, posted)
	}

	return post, nil
}

func parsePostedJob(data json.RawMessage) (*PostedJob, bool) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, false
	}

	posted := &PostedJob{}
	if err := json.Unmarshal(data, posted); err == nil {
		return posted, true
	}

	var fields struct {
		ID *job.ID `json:"id"`
	}
	if err := json.Unmarshal(data, &fields); err != nil || fields.ID == nil {
		return nil, false
	}
	return &PostedJob{ID: *fields.ID, Time: math.NaN(), AssignedSince: job.Never}, true
}
