// Package httpapi exposes read-only operational endpoints over the
// engine: liveness, Prometheus metrics, and a snapshot of the current
// graph. It never submits events — the client wire protocol itself
// (put/connect/undo/...) is out of this server's scope.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ingen-audio/ingen/internal/ingen/engine"
)

// Server is the Echo application exposing the engine's operational
// surface.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	logger *slog.Logger
}

// New constructs an Echo app with the status/metrics/graph routes
// registered, bound to e.
func New(e *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ec := echo.New()
	ec.HideBanner = true
	ec.HidePort = true
	ec.Use(middleware.Recover())
	ec.Use(requestLogger(logger))

	s := &Server{echo: ec, engine: e, logger: logger}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance, e.g. for tests or for a
// caller that wants to mount it under an existing *http.Server.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start blocks serving on addr until the process is asked to stop.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.echo.Close()
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req := c.Request()
			logger.Info("http request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/graph", s.handleGraph)
	if s.engine.Metrics() != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.engine.Metrics().Registry(), promhttp.HandlerOpts{})))
	}
}

type statusResponse struct {
	SampleRateBlockFrames int `json:"block_frames"`
	Blocks                int `json:"block_count"`
	Arcs                  int `json:"arc_count"`
}

func (s *Server) handleStatus(c echo.Context) error {
	root := s.engine.Root()
	return c.JSON(http.StatusOK, statusResponse{
		SampleRateBlockFrames: s.engine.NFrames(),
		Blocks:                len(root.Blocks),
		Arcs:                  len(root.Arcs),
	})
}

func (s *Server) handleGraph(c echo.Context) error {
	return c.JSON(http.StatusOK, snapshotGraph(s.engine.Root()))
}
