package coordinator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/srand/capataz/pkg/future"
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/protocol"
	"github.com/srand/capataz/pkg/stats"
	"github.com/srand/capataz/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type HttpTestSuite struct {
	suite.Suite
	coordinator *Coordinator
	clock       *testClock
	config      *HttpConfig
	echo        *echo.Echo
}

func (s *HttpTestSuite) SetupTest() {
	s.coordinator, s.clock = newTestCoordinator(s.T(), 10)
	s.config = NewHttpConfig()
	s.config.Compression = false
	s.echo = echo.New()
	NewHttpHandler(s.coordinator, s.echo, s.config)
}

func (s *HttpTestSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *HttpTestSuite) TestNoPendingJobs() {
	rec := s.do(http.MethodGet, "/capataz/task.json", "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(messageNoJobs, rec.Body.String())
	s.Equal("max-age=0,no-cache,no-store", rec.Header().Get("Cache-Control"))
}

func (s *HttpTestSuite) TestGetTask() {
	_, err := s.coordinator.Schedule(spec("test"))
	s.Require().NoError(err)

	rec := s.do(http.MethodGet, "/capataz/task.json", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("max-age=0,no-cache,no-store", rec.Header().Get("Cache-Control"))

	var task protocol.Task
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &task))
	s.Equal(s.coordinator.StartTime(), task.ServerStartTime)
	s.Require().Len(task.Jobs, 1)
	s.Equal("test", task.Jobs[0].Entrypoint)
	s.True(task.Jobs[0].AssignedSince.IsSet())
}

func (s *HttpTestSuite) TestPostTask() {
	handle, err := s.coordinator.Schedule(spec("test"))
	s.Require().NoError(err)

	task, err := s.coordinator.NextTask(1)
	s.Require().NoError(err)
	s.clock.Advance(100 * time.Millisecond)

	body := fmt.Sprintf(`{"jobs": [{"id": %d, "result": [3.14], "time": 12, "assignedSince": %d, "clientPlatform": "test"}]}`,
		task.Jobs[0].ID, task.Jobs[0].AssignedSince)

	rec := s.do(http.MethodPost, "/capataz/task.json", body)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(messageThankYou, rec.Body.String())

	s.Equal(future.Resolved, handle.State())
	value, _ := handle.Result()
	s.JSONEq(`[3.14]`, string(value))

	stat := s.coordinator.Statistics().Stat(stats.Keys{
		"key":      "evaluation_time",
		"status":   "resolved",
		"platform": "test",
		"client":   "192.0.2.1",
	})
	s.Equal(1.0, stat.Count)
}

func (s *HttpTestSuite) TestPostUnknownJob() {
	rec := s.do(http.MethodPost, "/capataz/task.json", `{"jobs": [{"id": 77, "result": 1, "time": 1, "assignedSince": 1}]}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(messageThankYou, rec.Body.String())
}

func (s *HttpTestSuite) TestInvalidPost() {
	for _, body := range []string{`{}`, `[]`, `{"jobs": 3}`, `{"jobs": null}`, `not json`} {
		rec := s.do(http.MethodPost, "/capataz/task.json", body)
		s.Equal(http.StatusBadRequest, rec.Code, body)
		s.Equal(messageInvalidPost, rec.Body.String(), body)
	}
}

func (s *HttpTestSuite) TestPostWithMalformedJob() {
	good, err := s.coordinator.Schedule(spec("good"))
	s.Require().NoError(err)
	bad, err := s.coordinator.Schedule(spec("bad"))
	s.Require().NoError(err)

	task, err := s.coordinator.NextTask(2)
	s.Require().NoError(err)
	s.Require().Len(task.Jobs, 2)
	s.clock.Advance(100 * time.Millisecond)

	body := fmt.Sprintf(`{"jobs": [
		{"id": %d, "result": 1, "time": 12, "assignedSince": %d},
		{"id": %d, "result": 2, "time": "slow", "assignedSince": %d},
		{"result": 3}
	]}`, task.Jobs[0].ID, task.Jobs[0].AssignedSince, task.Jobs[1].ID, task.Jobs[1].AssignedSince)

	rec := s.do(http.MethodPost, "/capataz/task.json", body)
	s.Equal(http.StatusOK, rec.Code)

	s.Equal(future.Resolved, good.State())
	s.Equal(future.Pending, bad.State())
	s.Equal([]job.ID{task.Jobs[1].ID}, s.coordinator.StoreStatus().Assigned)
}

func (s *HttpTestSuite) TestPostTooLarge() {
	s.config.MaxPostSize = 16

	rec := s.do(http.MethodPost, "/capataz/task.json", `{"jobs": [{"id": 1, "result": "a rather long result"}]}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HttpTestSuite) TestGetConfig() {
	rec := s.do(http.MethodGet, "/capataz/config.json", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var config protocol.ClientConfig
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &config))
	s.Equal(*s.coordinator.ClientConfig(), config)
	s.Contains(rec.Body.String(), `"maxDelay":900000`)
}

func (s *HttpTestSuite) TestGetStats() {
	s.coordinator.Statistics().Add(stats.Keys{"key": "evaluation_time", "status": "resolved"}, 5, nil)
	s.coordinator.Statistics().Add(stats.Keys{"key": "roundtrip_time", "status": "resolved"}, 7, nil)

	rec := s.do(http.MethodGet, "/capataz/stats.json?key=roundtrip_time", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var result []*stats.Statistic
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.Require().Len(result, 1)
	s.Equal("roundtrip_time", result[0].Keys["key"])
	s.Equal(7.0, result[0].Sum)

	rec = s.do(http.MethodGet, "/capataz/stats.json", "")
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.Len(result, 2)
}

func (s *HttpTestSuite) TestGetStore() {
	_, err := s.coordinator.Schedule(spec("test"))
	s.Require().NoError(err)

	rec := s.do(http.MethodGet, "/capataz/store.json", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var status store.Status
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &status))
	s.Equal(1, int(status.Count))
	s.Len(status.Pending, 1)
	s.Empty(status.Assigned)
}

func (s *HttpTestSuite) TestRedirect() {
	rec := s.do(http.MethodGet, "/", "")
	s.Equal(http.StatusFound, rec.Code)
	s.Equal("/capataz/index.html", rec.Header().Get(echo.HeaderLocation))
}

func (s *HttpTestSuite) TestMetrics() {
	_, err := s.coordinator.Schedule(spec("test"))
	s.Require().NoError(err)

	rec := s.do(http.MethodGet, "/metrics", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "capataz_jobs_scheduled_total 1")
	s.Contains(rec.Body.String(), "capataz_jobs_pending 1")
	s.Contains(rec.Body.String(), `capataz_results_total{status="ignored"} 0`)
}

func TestHttp(t *testing.T) {
	suite.Run(t, new(HttpTestSuite))
}

func TestHttpRouteOverrides(t *testing.T) {
	c, _ := newTestCoordinator(t, 10)
	config := NewHttpConfig()
	config.Routes.Task = "/work"

	assert.Equal(t, "/work", config.TaskRoute())
	assert.Equal(t, "/capataz/config.json", config.ConfigRoute())

	e := echo.New()
	NewHttpHandler(c, e, config)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/work", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, messageNoJobs, rec.Body.String())
}

func TestHttpBasicAuth(t *testing.T) {
	c, _ := newTestCoordinator(t, 10)
	e := echo.New()
	NewHttpHandler(c, e, NewHttpConfig(), WithAuthenticator(func(route, user, password string) bool {
		return route == "/capataz/config.json" && user == "drudger" && password == "secret"
	}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/capataz/config.json", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/capataz/config.json", nil)
	req.SetBasicAuth("drudger", "secret")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/capataz/store.json", nil)
	req.SetBasicAuth("drudger", "secret")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHttpFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/index.html", []byte("<h1>capataz</h1>"), 0644))
	require.NoError(t, fs.MkdirAll("/js", 0755))

	c, _ := newTestCoordinator(t, 10)
	e := echo.New()
	NewHttpHandler(c, e, NewHttpConfig(), WithFiles(fs))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/capataz/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>capataz</h1>", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/capataz/js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/capataz/missing.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Task route takes precedence over files.
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/capataz/task.json", nil))
	assert.Equal(t, messageNoJobs, rec.Body.String())
}

func TestHttpCompression(t *testing.T) {
	c, _ := newTestCoordinator(t, 10)
	for i := 0; i < 200; i++ {
		c.Statistics().Add(stats.Keys{"key": "evaluation_time", "client": fmt.Sprint(i)}, 1, nil)
	}

	e := echo.New()
	NewHttpHandler(c, e, NewHttpConfig())

	req := httptest.NewRequest(http.MethodGet, "/capataz/stats.json", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}
