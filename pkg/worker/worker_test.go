package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/srand/capataz/pkg/coordinator"
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/jobs"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/protocol"
	"github.com/srand/capataz/pkg/registry"
	"github.com/srand/capataz/pkg/store"
	"github.com/srand/capataz/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCoordinator(opts ...coordinator.Option) *coordinator.Coordinator {
	config := coordinator.NewConfig()
	config.WorkerCount = 2
	config.AdjustWorkerCount = false
	config.Isolation = protocol.IsolationInline
	config.MaxRetries = 1000
	config.MinDelay = 5 * time.Millisecond
	config.MaxDelay = 20 * time.Millisecond

	s := store.NewMemoryStore(store.NewConfig(), store.WithLogger(log.Discard()))
	opts = append([]coordinator.Option{coordinator.WithLogger(log.Discard())}, opts...)
	return coordinator.NewCoordinator(s, config, opts...)
}

// Serves c and counts the configuration requests.
func serve(t *testing.T, c *coordinator.Coordinator) (*httptest.Server, *atomic.Int32) {
	e := echo.New()
	coordinator.NewHttpHandler(c, e, coordinator.NewHttpConfig())

	configRequests := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/config.json") {
			configRequests.Add(1)
		}
		e.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv, configRequests
}

func newTestConfig(url string) *Config {
	config := NewConfig()
	config.CoordinatorUri = url + "/capataz"
	config.MaxRetries = 3
	config.MinDelay = time.Millisecond
	config.MaxDelay = 2 * time.Millisecond
	return config
}

func newRegistry() *registry.Registry {
	r := registry.New()
	jobs.Register(r)
	return r
}

func TestClientComputesPi(t *testing.T) {
	c := newCoordinator()
	srv, _ := serve(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := NewClient(newTestConfig(srv.URL), newRegistry(), WithLogger(log.Discard()))
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx)
	}()

	var mu sync.Mutex
	pi, failures := 0.0, 0

	err := c.ScheduleAll(ctx, jobs.PiSlices(20000, 16, nil), 0, func(_ job.Spec, handle *job.Handle) {
		handle.OnSettle(func(value json.RawMessage, err error) {
			mu.Lock()
			defer mu.Unlock()

			var slice float64
			if err != nil || json.Unmarshal(value, &slice) != nil {
				failures++
				return
			}
			pi += slice
		})
	})
	require.NoError(t, err)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, failures)
	assert.InDelta(t, math.Pi, pi, 1e-3)

	status := c.StoreStatus()
	assert.Empty(t, status.Pending)
	assert.Empty(t, status.Assigned)
}

func TestClientRestartsOnStaleCoordinator(t *testing.T) {
	// The coordinator appears to have started after the client.
	c := newCoordinator(coordinator.WithClock(func() time.Time {
		return time.Now().Add(time.Hour)
	}))
	_, err := c.Schedule(job.Spec{Payload: job.Payload{Entrypoint: jobs.EntrypointPiSlice}})
	require.NoError(t, err)

	srv, configRequests := serve(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient(newTestConfig(srv.URL), newRegistry(), WithLogger(log.Discard()))
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return configRequests.Load() >= 3
	}, 10*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(newTestConfig(srv.URL), newRegistry(), WithLogger(log.Discard()))
	err := client.Run(context.Background())
	assert.ErrorIs(t, err, utils.ErrTransport)
	assert.Contains(t, err.Error(), "Config request")
}

func TestClientAllDrudgersFail(t *testing.T) {
	var taskRequests atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/capataz/config.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&protocol.ClientConfig{
			WorkerCount: 3,
			Isolation:   protocol.IsolationInline,
			MaxRetries:  2,
			MinDelay:    protocol.Duration(time.Millisecond),
			MaxDelay:    protocol.Duration(time.Millisecond),
		})
	})
	mux.HandleFunc("/capataz/task.json", func(w http.ResponseWriter, r *http.Request) {
		taskRequests.Add(1)
		http.Error(w, "There are no pending jobs yet. Please try again later.", http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(newTestConfig(srv.URL), newRegistry(), WithLogger(log.Discard()))
	err := client.Run(context.Background())
	assert.ErrorIs(t, err, utils.ErrTransport)
	assert.Equal(t, int32(6), taskRequests.Load())
}

// Fails every request of the first drudger asking for a task and hands
// out endless one job tasks to all others.
type flakyCoordinator struct {
	mu             sync.Mutex
	broken         string
	brokenRequests atomic.Int32
	posts          atomic.Int32
	lastID         atomic.Int32
}

func (f *flakyCoordinator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/config.json") {
		json.NewEncoder(w).Encode(&protocol.ClientConfig{
			WorkerCount: 3,
			Isolation:   protocol.IsolationInline,
			MaxRetries:  2,
			MinDelay:    protocol.Duration(time.Millisecond),
			MaxDelay:    protocol.Duration(time.Millisecond),
		})
		return
	}

	drudger := r.Header.Get(DrudgerHeader)
	f.mu.Lock()
	if f.broken == "" {
		f.broken = drudger
	}
	broken := f.broken == drudger
	f.mu.Unlock()

	switch {
	case broken:
		f.brokenRequests.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)

	case r.Method == http.MethodPost:
		f.posts.Add(1)
		fmt.Fprint(w, "Thank you.")

	default:
		json.NewEncoder(w).Encode(&protocol.Task{
			TaskID: "task",
			Jobs: []protocol.TaskJob{
				{ID: job.ID(f.lastID.Add(1)), Entrypoint: "test", AssignedSince: job.Now(nil)},
			},
		})
	}
}

func TestClientIsolatesDrudgerFailures(t *testing.T) {
	flaky := &flakyCoordinator{}
	srv := httptest.NewServer(flaky)
	defer srv.Close()

	executor := &mockExecutor{}
	executor.On("Execute", mock.Anything, mock.Anything).Return(json.RawMessage(`true`), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient(newTestConfig(srv.URL), newRegistry(), WithLogger(log.Discard()), WithExecutor(executor))
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return flaky.brokenRequests.Load() == 2
	}, 10*time.Second, time.Millisecond)

	posts := flaky.posts.Load()
	require.Eventually(t, func() bool {
		return flaky.posts.Load() >= posts+20
	}, 10*time.Second, time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("client stopped: %v", err)
	default:
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int32(2), flaky.brokenRequests.Load())
}

func TestClientFetchConfig(t *testing.T) {
	c := newCoordinator()
	srv, _ := serve(t, c)

	client := NewClient(newTestConfig(srv.URL), newRegistry(), WithLogger(log.Discard()))
	config, err := client.FetchConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c.ClientConfig(), config)
}

func TestWorkerCount(t *testing.T) {
	client := NewClient(NewConfig(), newRegistry(), WithLogger(log.Discard()), WithPlatform(NewPlatform()))

	assert.Equal(t, 3, client.workerCount(&protocol.ClientConfig{WorkerCount: 3}))
	assert.Equal(t, 1, client.workerCount(&protocol.ClientConfig{}))

	client.config.Workers = 5
	assert.Equal(t, 5, client.workerCount(&protocol.ClientConfig{WorkerCount: 3, AdjustWorkerCount: true}))
}

func TestConfig(t *testing.T) {
	config := NewConfig()
	assert.NoError(t, config.Validate())

	url, err := config.TaskUrl()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/capataz/task.json", url)

	config.Isolation = "webworker"
	assert.Error(t, config.Validate())

	config = NewConfig()
	config.CoordinatorUri = "tcp://localhost:9000"
	assert.Error(t, config.Validate())

	config = NewConfig()
	config.MaxDelay = 0
	assert.Error(t, config.Validate())
}
