// Package httpapi exposes a small operator-facing HTTP surface:
// liveness and a per-source eligibility/starvation snapshot. It never
// reads or writes audio — the datagram path is entirely separate.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"voxmix/internal/eligibility"
	"voxmix/internal/source"
)

// Snapshot reports the current registry so handlers never touch the
// mixer thread's state directly; the mixer loop (runMixLoop in
// mixloop.go) publishes a fresh one after each frame.
type Snapshot interface {
	Sources() []SourceStatus
	ListenerCount() int
}

// SourceStatus is one source's last-known eligibility outcome.
type SourceStatus struct {
	Identity       string  `json:"identity"`
	Kind           string  `json:"kind"`
	Classification string  `json:"classification"`
	Started        bool    `json:"started"`
	MaxGapSeconds  float64 `json:"max_gap_seconds"`
}

// Server is the Echo application.
type Server struct {
	echo     *echo.Echo
	snapshot Snapshot
}

// New constructs an Echo app with the health and status routes.
func New(snapshot Snapshot) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, snapshot: snapshot}
	s.registerRoutes()
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			if req.URL.Path == "/health" {
				slog.Debug("http request",
					"method", req.Method,
					"path", req.URL.Path,
					"status", c.Response().Status,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			} else {
				slog.Info("http request",
					"method", req.Method,
					"path", req.URL.Path,
					"status", c.Response().Status,
					"duration_ms", time.Since(start).Milliseconds(),
					"remote", c.RealIP(),
				)
			}
			return nil
		}
	}
}

// Echo exposes the underlying instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/state", s.handleState)
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down http server")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		slog.Info("http server stopped")
		return nil
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Listeners int    `json:"listeners"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Listeners: s.snapshot.ListenerCount(),
	})
}

type stateResponse struct {
	Listeners int            `json:"listeners"`
	Sources   []SourceStatus `json:"sources"`
}

func (s *Server) handleState(c echo.Context) error {
	sources := s.snapshot.Sources()
	if sources == nil {
		sources = []SourceStatus{}
	}
	return c.JSON(http.StatusOK, stateResponse{
		Listeners: s.snapshot.ListenerCount(),
		Sources:   sources,
	})
}

// RegistrySnapshot adapts a source.Registry plus the last evaluated
// classifications into a Snapshot for the HTTP API.
type RegistrySnapshot struct {
	Registry        *source.Registry
	Classifications map[string]eligibility.Classification
	Listeners       int
}

// Sources implements Snapshot.
func (r RegistrySnapshot) Sources() []SourceStatus {
	all := r.Registry.All()
	out := make([]SourceStatus, 0, len(all))
	for _, src := range all {
		class := eligibility.Skip
		if c, ok := r.Classifications[src.Identity]; ok {
			class = c
		}
		out = append(out, SourceStatus{
			Identity:       src.Identity,
			Kind:           src.Kind.String(),
			Classification: class.String(),
			Started:        src.Buffer.Started(),
			MaxGapSeconds:  src.Gap.WindowMax().Seconds(),
		})
	}
	return out
}

// ListenerCount implements Snapshot.
func (r RegistrySnapshot) ListenerCount() int {
	return r.Listeners
}
