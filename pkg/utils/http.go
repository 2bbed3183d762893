package utils

import (
	"fmt"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/srand/capataz/pkg/log"
)

// Returns echo middleware that traces every request to the given logger.
func HttpLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Tracef("%4s %s %v %s (%s)", c.Request().Method, c.Request().URL, c.Response().Status, c.RealIP(), time.Since(start))
			return err
		}
	}
}

// Disables client side caching of the response.
func NoCache(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "max-age=0,no-cache,no-store")
		return next(c)
	}
}

// Converts a listen URI such as tcp://:8080 into a host:port address.
func ParseHttpUrl(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	switch u.Scheme {
	case "tcp", "tcp4", "tcp6", "http":
	default:
		return "", fmt.Errorf("%w: unsupported protocol: %s", ErrParse, u.Scheme)
	}

	host := u.Host
	if u.Port() == "" {
		host = fmt.Sprintf("%s:8080", u.Hostname())
	}
	return host, nil
}
