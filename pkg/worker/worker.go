package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/protocol"
	"github.com/srand/capataz/pkg/registry"
	"golang.org/x/sync/errgroup"
)

// A client runs a group of drudgers against one coordinator.
type Client struct {
	config     *Config
	registry   *registry.Registry
	platform   *Platform
	executor   Executor
	httpClient *http.Client
	clock      job.Clock
	logger     *log.Logger
}

type Option func(*Client)

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithPlatform(platform *Platform) Option {
	return func(c *Client) {
		c.platform = platform
	}
}

// Executes jobs with the given executor regardless of the isolation policy.
func WithExecutor(executor Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHttpClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithClock(clock job.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func NewClient(config *Config, r *registry.Registry, opts ...Option) *Client {
	c := &Client{
		config:   config,
		registry: r,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.platform == nil {
		c.platform = NewPlatformWithDefaults()
	}
	if c.httpClient == nil {
		c.httpClient = newHttpClient(config)
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

func (c *Client) transport() *transport {
	userAgent := "capataz-drudger"
	if id, ok := c.platform.Get(PropertyID); ok {
		userAgent += "/" + id
	}

	return &transport{
		client:    c.httpClient,
		config:    c.config,
		userAgent: userAgent,
		logger:    c.logger,
	}
}

// Fetches the drudger parameters from the coordinator.
func (c *Client) FetchConfig(ctx context.Context) (*protocol.ClientConfig, error) {
	url, err := c.config.ConfigUrl()
	if err != nil {
		return nil, err
	}

	policy := newRetryPolicy(c.config.MaxRetries, c.config.MinDelay, c.config.MaxDelay)
	return getJSON[protocol.ClientConfig](ctx, c.transport(), policy, "Config request", url)
}

func (c *Client) workerCount(config *protocol.ClientConfig) int {
	switch {
	case c.config.Workers > 0:
		return c.config.Workers
	case config.AdjustWorkerCount:
		return runtime.NumCPU()
	}
	return max(1, config.WorkerCount)
}

// Runs drudgers until ctx is done or all of them failed.
// All drudgers are restarted with a fresh configuration when the
// coordinator has been restarted.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("Starting")
	defer c.logger.Info("Terminating")

	for {
		err := c.run(ctx)
		if !errors.Is(err, ErrStaleCoordinator) {
			return err
		}

		c.logger.Info("Coordinator restarted, reloading configuration")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.MinDelay):
		}
	}
}

func (c *Client) run(ctx context.Context) error {
	config, err := c.FetchConfig(ctx)
	if err != nil {
		return err
	}

	taskUrl, err := c.config.TaskUrl()
	if err != nil {
		return err
	}

	isolation := config.Isolation
	if c.config.Isolation != "" {
		isolation = c.config.Isolation
	}

	executor := c.executor
	if executor == nil {
		if executor, err = NewExecutor(isolation, c.registry, c.config, c.logger); err != nil {
			return err
		}
	}

	startTime := job.Now(c.clock)
	count := c.workerCount(config)
	policy := newRetryPolicy(config.MaxRetries, config.MinDelay.Duration(), config.MaxDelay.Duration())

	c.logger.Infof("Starting %d drudgers (isolation: %s)", count, isolation)

	// Drudgers only share cancellation on a coordinator restart.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stale atomic.Bool
	g := errgroup.Group{}

	for i := 0; i < count; i++ {
		id := uuid.New()
		transport := c.transport()
		transport.drudger = id.String()

		d := &Drudger{
			id:        id,
			transport: transport,
			policy:    policy,
			taskUrl:   taskUrl,
			platform:  c.platform.Name(),
			startTime: startTime,
			executor:  executor,
			clock:     c.clock,
			logger:    c.logger,
		}

		g.Go(func() error {
			err := d.Run(runCtx)
			if errors.Is(err, ErrStaleCoordinator) && stale.CompareAndSwap(false, true) {
				cancel()
			}
			return err
		})
	}

	err = g.Wait()

	switch {
	case stale.Load() && ctx.Err() == nil:
		return ErrStaleCoordinator
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		return fmt.Errorf("all drudgers stopped: %w", err)
	}
	return nil
}
