package protocol

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePost(t *testing.T) {
	post, err := ParsePost([]byte(`{"jobs":[
		{"id": 1, "result": 3.14, "time": 12.5, "assignedSince": 1000, "clientPlatform": "linux/amd64"},
		{"id": 2, "error": "boom", "time": 1}
	]}`), "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, post.Jobs, 2)

	assert.Equal(t, job.ID(1), post.Jobs[0].ID)
	assert.False(t, post.Jobs[0].Failed())
	assert.Equal(t, 12.5, post.Jobs[0].Time)
	assert.Equal(t, job.Timestamp(1000), post.Jobs[0].AssignedSince)
	assert.Equal(t, "10.0.0.1", post.Jobs[0].PostedFrom)

	assert.True(t, post.Jobs[1].Failed())
	assert.Equal(t, job.Never, post.Jobs[1].AssignedSince)
}

func TestParsePostInvalid(t *testing.T) {
	for _, body := range []string{``, `[]`, `{}`, `{"jobs": 3}`, `{"jobs": null}`, `{"jobs": {}}`, `not json`} {
		_, err := ParsePost([]byte(body), "")
		assert.ErrorIs(t, err, utils.ErrInvalidPost, body)
	}
}

func TestParsePostKeepsWellFormedJobs(t *testing.T) {
	post, err := ParsePost([]byte(`{"jobs":[
		{"id": 1, "result": 3.14, "time": 12.5, "assignedSince": 1000},
		{"id": 2, "result": 2.71, "time": "x", "assignedSince": 1000},
		{"id": "three"},
		null
	]}`), "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, post.Jobs, 2)
	assert.Equal(t, 2, post.Malformed)

	assert.Equal(t, job.ID(1), post.Jobs[0].ID)
	assert.Equal(t, 12.5, post.Jobs[0].Time)

	assert.Equal(t, job.ID(2), post.Jobs[1].ID)
	assert.True(t, math.IsNaN(post.Jobs[1].Time))
	assert.Equal(t, job.Never, post.Jobs[1].AssignedSince)
	assert.Equal(t, "10.0.0.1", post.Jobs[1].PostedFrom)
}

func TestPostedFromIsNotDecoded(t *testing.T) {
	var posted PostedJob
	require.NoError(t, json.Unmarshal([]byte(`{"id": 1, "PostedFrom": "spoofed"}`), &posted))
	assert.Empty(t, posted.PostedFrom)
}

func TestTaskJSON(t *testing.T) {
	j := job.New(4, job.Spec{Payload: job.Payload{Entrypoint: "pi.slice", Args: []json.RawMessage{json.RawMessage(`1`)}}}, 10)

	task := Task{TaskID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", ServerStartTime: 5, Jobs: []TaskJob{NewTaskJob(j, 20)}}
	data, err := json.Marshal(task)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"taskId": "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		"serverStartTime": 5,
		"jobs": [{"id": 4, "entrypoint": "pi.slice", "deps": null, "args": [1], "assignedSince": 20}]
	}`, string(data))
}

func TestIsolation(t *testing.T) {
	var i Isolation
	assert.NoError(t, i.UnmarshalText([]byte("either")))
	assert.Equal(t, IsolationEither, i)
	assert.ErrorIs(t, i.UnmarshalText([]byte("webworker")), utils.ErrParse)
}

func TestClientConfigJSON(t *testing.T) {
	config := ClientConfig{
		WorkerCount: 2,
		Isolation:   IsolationIsolated,
		MaxRetries:  100,
		MinDelay:    Duration(100 * time.Millisecond),
		MaxDelay:    Duration(15 * time.Minute),
	}

	data, err := json.Marshal(config)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"minDelay":100`)
	assert.Contains(t, string(data), `"maxDelay":900000`)

	var decoded ClientConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, config, decoded)
}
