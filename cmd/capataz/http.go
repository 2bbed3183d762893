package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/srand/capataz/pkg/coordinator"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/stats"
	"github.com/srand/capataz/pkg/store"
	"github.com/srand/capataz/pkg/utils"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// A coordinator served on all configured addresses.
type server struct {
	coordinator *coordinator.Coordinator
	store       store.Store
	servers     []*http.Server
}

func newServer(config *Config) (*server, error) {
	logger := log.Default()
	statistics := stats.New()

	s, err := store.New(&config.Store, store.WithStatistics(statistics), store.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	srv := &server{
		coordinator: coordinator.NewCoordinator(s, &config.Coordinator,
			coordinator.WithStatistics(statistics),
			coordinator.WithLogger(logger)),
		store: s,
	}

	var opts []coordinator.HttpOption
	if len(config.Users) > 0 {
		opts = append(opts, coordinator.WithAuthenticator(config.Authenticate))
	}

	for _, uri := range config.ListenHttp {
		host, err := utils.ParseHttpUrl(uri)
		if err != nil {
			s.Close()
			return nil, err
		}

		r := echo.New()
		r.HideBanner = true
		r.HidePort = true
		r.Add(echo.GET, "/debug/pprof/*", echo.WrapHandler(http.DefaultServeMux))
		coordinator.NewHttpHandler(srv.coordinator, r, &config.Http, opts...)

		srv.servers = append(srv.servers, &http.Server{Addr: host, Handler: r})
	}

	return srv, nil
}

// Serves until ctx is done or a listener fails.
func (s *server) Run(ctx context.Context) error {
	defer s.store.Close()

	g, ctx := errgroup.WithContext(ctx)

	for _, httpServer := range s.servers {
		log.Info("Listening on http", httpServer.Addr)

		g.Go(func() error {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, httpServer := range s.servers {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("Failed to shut down", httpServer.Addr, err)
			}
		}
		return nil
	})

	return g.Wait()
}

// Runs fn while serving the coordinator, then shuts the server down.
func withServer(fn func(ctx context.Context, srv *server) error) {
	ctx, cancel := signalContext()
	defer cancel()

	srv, err := newServer(config)
	if err != nil {
		log.Fatal(err)
	}

	serveCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(serveCtx)
	}()

	err = fn(ctx, srv)
	stop()

	if serveErr := <-done; serveErr != nil {
		log.Fatal(serveErr)
	}
	if err != nil {
		log.Fatal(err)
	}
}
