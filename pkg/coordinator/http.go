package coordinator

import (
	"io"
	"net"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/protocol"
	"github.com/srand/capataz/pkg/stats"
	"github.com/srand/capataz/pkg/utils"
)

const (
	messageNoJobs      = "There are no pending jobs yet. Please try again later."
	messageInvalidPost = "Invalid post."
	messageThankYou    = "Thank you."
)

// Overrides of the default route paths.
type Routes struct {
	Task   string `mapstructure:"task"`
	Config string `mapstructure:"config"`
	Stats  string `mapstructure:"stats"`
	Store  string `mapstructure:"store"`
}

type HttpConfig struct {
	// Prefix of all coordinator routes.
	StaticRoute string `mapstructure:"static_route"`
	Routes      Routes `mapstructure:"routes"`
	// Gzip responses.
	Compression bool `mapstructure:"compression"`
	// Folders with files served below the static route.
	CustomFiles []string `mapstructure:"custom_files"`
	// Origins allowed to call the coordinator from a browser.
	CorsOrigins []string `mapstructure:"cors_origins"`
	// Maximum size of a result post.
	MaxPostSize utils.ByteSize `mapstructure:"max_post_size"`
}

func NewHttpConfig() *HttpConfig {
	return &HttpConfig{
		StaticRoute: "/capataz",
		Compression: true,
		CorsOrigins: []string{"*"},
		MaxPostSize: 32 * 1024 * 1024,
	}
}

func SetHttpDefaults(v *viper.Viper, prefix string) {
	defaults := NewHttpConfig()
	v.SetDefault(prefix+"static_route", defaults.StaticRoute)
	v.SetDefault(prefix+"compression", defaults.Compression)
	v.SetDefault(prefix+"cors_origins", defaults.CorsOrigins)
	v.SetDefault(prefix+"max_post_size", int64(defaults.MaxPostSize))
}

func (c *HttpConfig) route(override, name string) string {
	if override != "" {
		return override
	}
	return path.Join(c.StaticRoute, name)
}

func (c *HttpConfig) TaskRoute() string   { return c.route(c.Routes.Task, "task.json") }
func (c *HttpConfig) ConfigRoute() string { return c.route(c.Routes.Config, "config.json") }
func (c *HttpConfig) StatsRoute() string  { return c.route(c.Routes.Stats, "stats.json") }
func (c *HttpConfig) StoreRoute() string  { return c.route(c.Routes.Store, "store.json") }

func (c *HttpConfig) Log(logger *log.Logger) {
	logger.Info("HTTP configuration:")
	logger.Infof("  Static route: %s", c.StaticRoute)
	logger.Infof("  Task route: %s", c.TaskRoute())
	logger.Infof("  Compression: %v", c.Compression)
	logger.Infof("  Custom files: %v", c.CustomFiles)
	logger.Infof("  CORS origins: %v", c.CorsOrigins)
}

// Decides whether a user may access a route.
type Authenticator func(route, user, password string) bool

type httpOptions struct {
	authenticate Authenticator
	files        []afero.Fs
}

type HttpOption func(*httpOptions)

// Protects the coordinator routes with HTTP basic authentication.
func WithAuthenticator(fn Authenticator) HttpOption {
	return func(o *httpOptions) {
		o.authenticate = fn
	}
}

// Serves files from the given filesystems below the static route,
// in addition to the configured custom file folders.
func WithFiles(fs ...afero.Fs) HttpOption {
	return func(o *httpOptions) {
		o.files = append(o.files, fs...)
	}
}

// Registers the coordinator routes with an echo instance.
func NewHttpHandler(coordinator *Coordinator, r *echo.Echo, config *HttpConfig, opts ...HttpOption) {
	options := &httpOptions{}
	for _, dir := range config.CustomFiles {
		options.files = append(options.files, afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), dir)))
	}
	for _, opt := range opts {
		opt(options)
	}

	h := &httpHandler{
		coordinator: coordinator,
		config:      config,
		files:       options.files,
		logger:      coordinator.Logger(),
	}

	r.Use(middleware.Recover())
	r.Use(utils.HttpLogger(h.logger))
	r.Use(echo.WrapMiddleware(cors.Handler(cors.Options{
		AllowedOrigins: config.CorsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})))
	if config.Compression {
		r.Use(echo.WrapMiddleware(func(next http.Handler) http.Handler {
			return gzhttp.GzipHandler(next)
		}))
	}

	auth := func(route string) []echo.MiddlewareFunc {
		mws := []echo.MiddlewareFunc{utils.NoCache}
		if options.authenticate == nil {
			return mws
		}
		return append(mws, middleware.BasicAuth(func(user, password string, c echo.Context) (bool, error) {
			return options.authenticate(route, user, password), nil
		}))
	}

	r.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, path.Join(config.StaticRoute, "index.html"))
	})

	r.GET(config.TaskRoute(), h.getTask, auth(config.TaskRoute())...)
	r.POST(config.TaskRoute(), h.postTask, auth(config.TaskRoute())...)
	r.GET(config.ConfigRoute(), h.getConfig, auth(config.ConfigRoute())...)
	r.GET(config.StatsRoute(), h.getStats, auth(config.StatsRoute())...)
	r.GET(config.StoreRoute(), h.getStore, auth(config.StoreRoute())...)
	r.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(coordinator.Registry(), promhttp.HandlerOpts{})))

	if len(h.files) > 0 {
		r.GET(strings.TrimSuffix(config.StaticRoute, "/")+"/*", h.getFile, auth(config.StaticRoute)...)
	}
}

type httpHandler struct {
	coordinator *Coordinator
	config      *HttpConfig
	files       []afero.Fs
	logger      *log.Logger
}

func (h *httpHandler) getTask(c echo.Context) error {
	task, err := h.coordinator.NextTask(0)
	if err != nil {
		h.logger.Errorf("Failed to assemble task: %v", err)
		if task == nil || task.IsEmpty() {
			return c.String(utils.HttpStatus(err), err.Error())
		}
	}

	if task.IsEmpty() {
		h.logger.Debug("There are no pending jobs yet")
		return c.String(http.StatusNotFound, messageNoJobs)
	}

	return c.JSON(http.StatusOK, task)
}

func (h *httpHandler) postTask(c echo.Context) error {
	body := c.Request().Body
	if h.config.MaxPostSize > 0 {
		body = http.MaxBytesReader(c.Response(), body, int64(h.config.MaxPostSize))
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return c.String(http.StatusBadRequest, messageInvalidPost)
	}

	post, err := protocol.ParsePost(data, remoteAddress(c.Request()))
	if err != nil {
		h.logger.Debugf("Invalid post from %s: %v", c.Request().RemoteAddr, err)
		return c.String(http.StatusBadRequest, messageInvalidPost)
	}

	if post.Malformed > 0 {
		h.logger.Warnf("Dropped %d unreadable jobs posted from %s", post.Malformed, c.Request().RemoteAddr)
	}

	for _, posted := range post.Jobs {
		h.coordinator.ProcessResult(posted)
	}

	return c.String(http.StatusOK, messageThankYou)
}

func (h *httpHandler) getConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.coordinator.ClientConfig())
}

func (h *httpHandler) getStats(c echo.Context) error {
	var keys stats.Keys
	if key := c.QueryParam("key"); key != "" {
		keys = stats.Keys{"key": key}
	}
	return c.JSON(http.StatusOK, h.coordinator.Statistics().Filter(keys))
}

func (h *httpHandler) getStore(c echo.Context) error {
	return c.JSON(http.StatusOK, h.coordinator.StoreStatus())
}

// Serves the first matching file of the configured filesystems.
func (h *httpHandler) getFile(c echo.Context) error {
	name := path.Clean("/" + c.Param("*"))

	for _, fs := range h.files {
		info, err := fs.Stat(name)
		if err != nil || info.IsDir() {
			continue
		}

		file, err := fs.Open(name)
		if err != nil {
			continue
		}
		defer file.Close()

		http.ServeContent(c.Response(), c.Request(), info.Name(), info.ModTime(), file)
		return nil
	}

	return echo.ErrNotFound
}

func remoteAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
