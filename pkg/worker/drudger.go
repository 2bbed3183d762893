package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/srand/capataz/pkg/future"
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/protocol"
)

// Returned by a drudger when the coordinator was restarted after the
// drudger loaded its configuration.
var ErrStaleCoordinator = errors.New("The coordinator has been restarted")

// A drudger polls the coordinator for tasks, executes their jobs
// one after another and posts the results back.
type Drudger struct {
	id        uuid.UUID
	transport *transport
	policy    retryPolicy
	taskUrl   string
	platform  string
	startTime job.Timestamp
	executor  Executor
	clock     job.Clock
	logger    *log.Logger
}

func (d *Drudger) ID() uuid.UUID {
	return d.id
}

// Polls, executes and posts until ctx is done or the coordinator
// cannot be reached anymore.
func (d *Drudger) Run(ctx context.Context) error {
	d.logger.Debugf("Drudger %s started", d.id)

	_, err := future.DoWhile(ctx, func(ctx context.Context) (bool, error) {
		task, err := d.getTask(ctx)
		if err != nil {
			return false, err
		}

		posts := d.doWork(ctx, task)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		return true, d.postResults(ctx, posts)
	}, func(bool) bool {
		return true
	})

	switch {
	case errors.Is(err, ErrStaleCoordinator), errors.Is(err, context.Canceled):
		d.logger.Debugf("Drudger %s stopped: %v", d.id, err)
	case err != nil:
		d.logger.Errorf("Drudger %s failed: %v", d.id, err)
	}
	return err
}

func (d *Drudger) getTask(ctx context.Context) (*protocol.Task, error) {
	d.logger.Debug("< Requesting jobs.")

	task, err := getJSON[protocol.Task](ctx, d.transport, d.policy, "Job request", d.taskUrl)
	if err != nil {
		return nil, err
	}

	if task.ServerStartTime > d.startTime {
		d.logger.Info("> Definitions are outdated.")
		return nil, ErrStaleCoordinator
	}

	if len(task.Jobs) > 0 {
		d.logger.Debugf("> Received %d jobs. E.g.: %s", len(task.Jobs), task.Jobs[0].Info)
	}
	return task, nil
}

// Executes the jobs of a task one after another.
func (d *Drudger) doWork(ctx context.Context, task *protocol.Task) []*protocol.PostedJob {
	posts := make([]*protocol.PostedJob, 0, len(task.Jobs))

	for i := range task.Jobs {
		if ctx.Err() != nil {
			break
		}

		j := &task.Jobs[i]
		post := &protocol.PostedJob{
			ID:             j.ID,
			AssignedSince:  j.AssignedSince,
			ClientPlatform: d.platform,
		}

		start := d.clock()
		result, err := d.executor.Execute(ctx, j)
		post.Time = elapsedMilliseconds(d.clock().Sub(start))

		if err != nil {
			post.Error = errorReason(err)
			d.logger.Warnf("> %s !! %v", j.Info, err)
		} else {
			post.Result = result
			d.logger.Debugf("> %s -> %s", j.Info, result)
		}

		posts = append(posts, post)
	}

	return posts
}

func (d *Drudger) postResults(ctx context.Context, posts []*protocol.PostedJob) error {
	if len(posts) == 0 {
		return nil
	}

	d.logger.Debug("< Posting results.")
	return postJSON(ctx, d.transport, d.policy, "Result post", d.taskUrl, &protocol.Post{Jobs: posts})
}

// Execution times are reported in fractional milliseconds, and always positive.
func elapsedMilliseconds(d time.Duration) float64 {
	return max(float64(d)/float64(time.Millisecond), 0.001)
}

func (d *Drudger) String() string {
	return fmt.Sprintf("drudger %s", d.id)
}
