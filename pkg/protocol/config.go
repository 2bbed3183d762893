package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/srand/capataz/pkg/utils"
)

// Where a drudger may execute jobs.
type Isolation string

const (
	// Jobs must run in a child process.
	IsolationIsolated Isolation = "isolated"
	// Jobs must run inside the drudger process.
	IsolationInline Isolation = "inline"
	// Jobs run in a child process when possible, inline otherwise.
	IsolationEither Isolation = "either"
)

func (i Isolation) Validate() error {
	switch i {
	case IsolationIsolated, IsolationInline, IsolationEither:
		return nil
	}
	return fmt.Errorf("%w: invalid isolation %q", utils.ErrParse, string(i))
}

func (i *Isolation) UnmarshalText(text []byte) error {
	isolation := Isolation(text)
	if err := isolation.Validate(); err != nil {
		return err
	}
	*i = isolation
	return nil
}

// A duration serialized as milliseconds.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*d = Duration(ms * float64(time.Millisecond))
	return nil
}

// Parameters a coordinator hands out to its drudgers.
type ClientConfig struct {
	WorkerCount       int       `json:"workerCount"`
	AdjustWorkerCount bool      `json:"adjustWorkerCount"`
	Isolation         Isolation `json:"isolation"`
	MaxRetries        int       `json:"maxRetries"`
	MinDelay          Duration  `json:"minDelay"`
	MaxDelay          Duration  `json:"maxDelay"`
}
