package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/srand/capataz/pkg/backoff"
	"github.com/srand/capataz/pkg/future"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/utils"
)

// Longest response body text kept in errors.
const maxErrorBody = 512

// Request header carrying the id of the drudger sending the request.
const DrudgerHeader = "X-Capataz-Drudger"

// A response with a status code other than 2xx.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retry policy of coordinator requests.
type retryPolicy struct {
	attempts int
	strategy backoff.Strategy
}

func newRetryPolicy(attempts int, minDelay, maxDelay time.Duration) retryPolicy {
	return retryPolicy{
		attempts: attempts,
		strategy: backoff.NewExponential(minDelay, maxDelay),
	}
}

type transport struct {
	client    *http.Client
	config    *Config
	userAgent string
	drudger   string
	logger    *log.Logger
}

func newHttpClient(config *Config) *http.Client {
	return &http.Client{
		Timeout:   config.Timeout,
		Transport: gzhttp.Transport(http.DefaultTransport),
	}
}

func (t *transport) do(ctx context.Context, method, url string, body []byte, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	if t.drudger != "" {
		req.Header.Set(DrudgerHeader, t.drudger)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.config.Username != "" {
		req.SetBasicAuth(t.config.Username, t.config.Password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(text))}
	}

	if result == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrParse, err)
	}
	return nil
}

// Performs a request until it succeeds or the policy gives up.
// Exhausted retries are reported as utils.ErrTransport.
func request[T any](ctx context.Context, t *transport, policy retryPolicy, what string, fn func(ctx context.Context) (T, error)) (T, error) {
	value, err := future.Retry(ctx, policy.attempts, policy.strategy, func(ctx context.Context, attempt int) (T, error) {
		value, err := fn(ctx)
		if err != nil && ctx.Err() == nil {
			t.logger.Warnf("! %s failed (attempt %d/%d): %v", what, attempt, policy.attempts, err)
		}
		return value, err
	})

	if err != nil {
		if ctx.Err() != nil {
			return value, ctx.Err()
		}
		t.logger.Errorf("%s failed too many times. Not retrying anymore.", what)
		return value, fmt.Errorf("%w: %s failed: %v", utils.ErrTransport, what, err)
	}
	return value, nil
}

func getJSON[T any](ctx context.Context, t *transport, policy retryPolicy, what, url string) (*T, error) {
	return request(ctx, t, policy, what, func(ctx context.Context) (*T, error) {
		var result T
		if err := t.do(ctx, http.MethodGet, url, nil, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
}

func postJSON(ctx context.Context, t *transport, policy retryPolicy, what, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	_, err = request(ctx, t, policy, what, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.do(ctx, http.MethodPost, url, data, nil)
	})
	return err
}
