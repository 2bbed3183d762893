package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/protocol"
	"github.com/srand/capataz/pkg/registry"
	"github.com/srand/capataz/pkg/utils"
)

// Name of the drudger subcommand executing one job in a child process.
const ExecCommand = "exec"

// Runs jobs handed out by the coordinator.
type Executor interface {
	Execute(ctx context.Context, j *protocol.TaskJob) (json.RawMessage, error)
}

// Runs jobs in the drudger process.
type InlineExecutor struct {
	registry *registry.Registry
}

func NewInlineExecutor(r *registry.Registry) *InlineExecutor {
	return &InlineExecutor{registry: r}
}

func (e *InlineExecutor) Execute(ctx context.Context, j *protocol.TaskJob) (json.RawMessage, error) {
	return e.registry.Invoke(ctx, j.Payload())
}

// The outcome of a job executed in a child process, written to its stdout.
type outcome struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Runs every job in a child process. The child reads the job from
// stdin and writes its outcome to stdout.
type ProcessExecutor struct {
	args   []string
	env    []string
	logger *log.Logger
}

func NewProcessExecutor(logger *log.Logger, args ...string) *ProcessExecutor {
	return &ProcessExecutor{
		args:   args,
		logger: logger,
	}
}

// Adds variables to the environment of the child processes.
func (e *ProcessExecutor) SetEnv(env ...string) {
	e.env = append(e.env, env...)
}

func (e *ProcessExecutor) Execute(ctx context.Context, j *protocol.TaskJob) (json.RawMessage, error) {
	input, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}

	stdout := bytes.Buffer{}
	cmd := utils.NewCommand(ctx, e.args...)
	cmd.SetLogger(e.logger)
	cmd.SetStdin(bytes.NewReader(input))
	cmd.SetStdout(&stdout)
	if len(e.env) > 0 {
		cmd.SetEnv(e.env...)
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	var out outcome
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("%w: unreadable outcome of job %d: %v", utils.ErrParse, j.ID, err)
	}

	if len(out.Error) > 0 && string(out.Error) != "null" {
		return nil, job.NewExecutionError(j.ID, out.Error)
	}
	if len(out.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return out.Result, nil
}

// Limits applied to a child process before it executes its job.
type Limits struct {
	CpuTime time.Duration
	Memory  utils.ByteSize
}

// Executes the job read from stdin and writes its outcome to stdout.
// This is the child side of ProcessExecutor. A failing job is reported
// in the outcome; only I/O and limit failures are returned.
func ExecuteChild(ctx context.Context, r *registry.Registry, limits Limits, stdin io.Reader, stdout io.Writer) error {
	if err := utils.SetResourceLimits(limits.CpuTime, limits.Memory); err != nil {
		return fmt.Errorf("failed to set resource limits: %w", err)
	}

	var j protocol.TaskJob
	if err := json.NewDecoder(stdin).Decode(&j); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrParse, err)
	}

	var out outcome
	result, err := r.Invoke(ctx, j.Payload())
	if err != nil {
		out.Error = errorReason(err)
	} else {
		out.Result = result
	}

	return json.NewEncoder(stdout).Encode(&out)
}

// Returns the error posted for a failed job.
func errorReason(err error) json.RawMessage {
	var execErr *job.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Reason
	}

	message := err.Error()
	var detailed utils.DetailedError
	if errors.As(err, &detailed) && detailed.Details() != "" {
		message += "\n" + detailed.Details()
	}

	data, _ := json.Marshal(message)
	return data
}

// Returns the command line re-invoking this binary for isolated execution.
func execArgs(config *Config) ([]string, error) {
	executable := config.Executable
	if executable == "" {
		var err error
		if executable, err = os.Executable(); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(executable); err != nil {
		return nil, err
	}

	args := []string{executable, ExecCommand}
	if config.CpuTime > 0 {
		args = append(args, "--cpu-time", config.CpuTime.String())
	}
	if config.MemoryLimit > 0 {
		args = append(args, "--memory-limit", fmt.Sprint(int64(config.MemoryLimit)))
	}
	return args, nil
}

// Creates the executor implementing an isolation policy.
func NewExecutor(isolation protocol.Isolation, r *registry.Registry, config *Config, logger *log.Logger) (Executor, error) {
	switch isolation {
	case protocol.IsolationInline:
		return NewInlineExecutor(r), nil

	case protocol.IsolationIsolated, protocol.IsolationEither:
		args, err := execArgs(config)
		if err == nil {
			return NewProcessExecutor(logger, args...), nil
		}
		if isolation == protocol.IsolationIsolated {
			return nil, fmt.Errorf("isolated execution is unavailable: %w", err)
		}
		logger.Warnf("Isolated execution is unavailable, running jobs inline: %v", err)
		return NewInlineExecutor(r), nil
	}

	return nil, fmt.Errorf("%w: unknown isolation %q", utils.ErrParse, isolation)
}
