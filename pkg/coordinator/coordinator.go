package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/srand/capataz/pkg/future"
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/protocol"
	"github.com/srand/capataz/pkg/stats"
	"github.com/srand/capataz/pkg/store"
	"github.com/srand/capataz/pkg/utils"
)

// The outcome of processing a posted result.
type Status string

const (
	// The job is unknown, no longer assigned or already settled.
	StatusIgnored Status = "ignored"

	// The post failed validation, the job stays assigned.
	StatusInvalid Status = "invalid"

	StatusResolved Status = "resolved"
	StatusRejected Status = "rejected"
)

// Statistic keys.
const (
	keyEstimatedTime  = "estimated_time"
	keyEvaluationTime = "evaluation_time"
	keyRoundtripTime  = "roundtrip_time"
	keyJobsPerTask    = "jobs_per_task"
)

// Number of execution time samples needed before tasks grow beyond one job.
const bootstrapSamples = 3

// The coordinator hands out jobs from a store to drudgers and settles
// them with the results they post back. The number of jobs per task
// adapts to the observed execution time.
type Coordinator struct {
	config    *Config
	store     store.Store
	stats     *stats.Statistics
	logger    *log.Logger
	clock     job.Clock
	registry  *prometheus.Registry
	metrics   *metrics
	startTime job.Timestamp
}

type Option func(*Coordinator)

func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// Use a shared statistics accumulator, e.g. the one given to the store.
func WithStatistics(s *stats.Statistics) Option {
	return func(c *Coordinator) {
		c.stats = s
	}
}

func WithClock(clock job.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// Register metrics with registry instead of a private one. Coordinators
// given the same registry share their counters.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Coordinator) {
		c.registry = registry
	}
}

func NewCoordinator(store store.Store, config *Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		config: config,
		store:  store,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.stats == nil {
		c.stats = stats.New()
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}

	c.startTime = c.now()
	c.metrics = newMetrics(c)
	return c
}

func (c *Coordinator) now() job.Timestamp {
	return job.Now(c.clock)
}

// Schedules a job. The returned handle settles once a drudger
// posts a valid result for it.
func (c *Coordinator) Schedule(spec job.Spec) (*job.Handle, error) {
	c.stats.AccountMemory()

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	j, err := c.store.Store(spec)
	if err != nil {
		if errors.Is(err, utils.ErrCapacityExceeded) {
			c.metrics.refused.Inc()
		}
		return nil, err
	}

	c.metrics.scheduled.Inc()

	id, handle := j.ID, j.Handle
	handle.OnSettle(func(_ json.RawMessage, err error) {
		if err != nil && handle.State() == future.Rejected {
			c.logger.Errorf("Job %d failed: %v", id, err)
		}
	})

	return handle, nil
}

// Returns the number of jobs to hand out per task, so that a drudger
// spends about the desired evaluation time on it.
func (c *Coordinator) TaskSize() int {
	estimate := c.stats.Stat(stats.Keys{"key": keyEstimatedTime})
	if estimate.Samples < bootstrapSamples {
		return 1
	}

	jobTime := math.Max(1, estimate.Average())
	desired := float64(c.config.DesiredEvaluationTime.Milliseconds())
	size := math.Min(float64(c.config.MaxTaskSize), desired/jobTime)
	return int(math.Round(math.Max(1, size)))
}

// Returns a task of up to amount jobs, or TaskSize() jobs if amount is not positive.
// The task is empty if no job is available.
func (c *Coordinator) NextTask(amount int) (*protocol.Task, error) {
	if amount <= 0 {
		amount = c.TaskSize()
	}

	jobs, err := c.store.Task(amount)

	now := c.now()
	task := &protocol.Task{
		TaskID:          ulid.MustNew(ulid.Timestamp(now.Time()), ulid.DefaultEntropy()).String(),
		ServerStartTime: c.startTime,
		Jobs:            make([]protocol.TaskJob, 0, len(jobs)),
	}

	for _, j := range jobs {
		task.Jobs = append(task.Jobs, protocol.NewTaskJob(j, now))
	}

	if len(task.Jobs) > 0 {
		c.stats.Add(stats.Keys{"key": keyJobsPerTask}, float64(len(task.Jobs)), nil)
		c.metrics.jobsPerTask.Observe(float64(len(task.Jobs)))
		c.logger.Debugf("Task %s: %d jobs", task.TaskID, len(task.Jobs))
	}

	return task, err
}

// Returns true if a post has no assignment time, was assigned before this
// coordinator started or in the future, or reports a non-positive execution time.
func (c *Coordinator) PostIsInvalid(post *protocol.PostedJob) bool {
	return !post.AssignedSince.IsSet() ||
		post.AssignedSince < c.startTime ||
		post.AssignedSince > c.now() ||
		math.IsNaN(post.Time) ||
		post.Time <= 0
}

// Settles the job of a posted result.
func (c *Coordinator) ProcessResult(post *protocol.PostedJob) Status {
	c.stats.AccountMemory()

	j, err := c.store.Assigned(post.ID)
	if err != nil {
		c.logger.Debugf("Job %d not found, ignoring post from %s", post.ID, post.PostedFrom)
		c.metrics.results.WithLabelValues(string(StatusIgnored)).Inc()
		return StatusIgnored
	}

	var status Status

	switch {
	case c.PostIsInvalid(post):
		c.logger.Warnf("Posted result for job %d from %s is not valid, ignoring post", post.ID, post.PostedFrom)
		status = StatusInvalid

	case post.Failed():
		status = StatusRejected
		if !j.Handle.Reject(job.NewExecutionError(j.ID, post.Error)) {
			status = StatusIgnored
		}

	default:
		status = StatusResolved
		if !j.Handle.Resolve(post.Result) {
			status = StatusIgnored
		}
	}

	c.accountPost(post, j, status)
	return status
}

func (c *Coordinator) accountPost(post *protocol.PostedJob, j *job.Job, status Status) {
	c.metrics.results.WithLabelValues(string(status)).Inc()

	if status == StatusResolved {
		c.stats.Gain(stats.Keys{"key": keyEstimatedTime}, post.Time, c.config.EvaluationTimeGainFactor, nil)
		c.metrics.evaluation.Observe(post.Time / 1000)
	}

	keys := stats.Keys{
		"status":   string(status),
		"platform": post.ClientPlatform,
		"client":   post.PostedFrom,
	}.With(j.Tags)

	if !math.IsNaN(post.Time) {
		c.stats.Add(stats.Keys{"key": keyEvaluationTime}.With(keys), post.Time, j.ID)
	}
	if post.AssignedSince.IsSet() {
		roundtrip := post.AssignedSince.Until(c.now())
		c.stats.Add(stats.Keys{"key": keyRoundtripTime}.With(keys), float64(roundtrip.Milliseconds()), j.ID)
	}
}

// Schedules jobs in batches of at most batch jobs, waiting for every job
// of a batch to settle before pulling the next one from jobs. A batch
// that is not positive or exceeds the capacity of the store is set to
// that capacity. onScheduled, if not nil, is called for every
// scheduled job.
func (c *Coordinator) ScheduleAll(ctx context.Context, jobs iter.Seq[job.Spec], batch int, onScheduled func(job.Spec, *job.Handle)) error {
	if capacity := c.store.Capacity(); batch <= 0 || (capacity > 0 && batch > capacity) {
		batch = capacity
	}
	if batch <= 0 {
		return fmt.Errorf("%w: batch size must be positive", utils.ErrBadRequest)
	}

	next, stop := iter.Pull(jobs)
	defer stop()

	for {
		handles := make([]*job.Handle, 0, batch)

		for len(handles) < batch {
			spec, ok := next()
			if !ok {
				break
			}

			handle, err := c.Schedule(spec)
			if err != nil {
				return err
			}

			if onScheduled != nil {
				onScheduled(spec, handle)
			}
			handles = append(handles, handle)
		}

		if len(handles) == 0 {
			return nil
		}

		c.logger.Debugf("Waiting for a batch of %d jobs", len(handles))

		if _, err := future.Settled(handles...).Wait(ctx); err != nil {
			return err
		}

		if len(handles) < batch {
			return nil
		}
	}
}

// Removes a pending or assigned job from the store without settling it.
func (c *Coordinator) Evict(id job.ID) bool {
	if !c.store.Evict(id) {
		return false
	}
	c.metrics.evicted.Inc()
	return true
}

func (c *Coordinator) Statistics() *stats.Statistics {
	return c.stats
}

func (c *Coordinator) StoreStatus() store.Status {
	return c.store.Status()
}

func (c *Coordinator) ClientConfig() *protocol.ClientConfig {
	return c.config.ClientConfig()
}

func (c *Coordinator) StartTime() job.Timestamp {
	return c.startTime
}

func (c *Coordinator) Config() *Config {
	return c.config
}

// The registry with the coordinator's metrics.
func (c *Coordinator) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Coordinator) Logger() *log.Logger {
	return c.logger
}
