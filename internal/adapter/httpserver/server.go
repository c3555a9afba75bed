package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
	"github.com/pscheid92/gridlayout/internal/platform/config"
	"github.com/pscheid92/gridlayout/internal/saga"
)

// sagaRegistry is the read side of saga.Registry used by the admin routes.
type sagaRegistry interface {
	Active() []string
	Get(sagaID string) (*saga.Saga, bool)
}

// Server is the operational HTTP surface: health checks, Prometheus
// metrics and read-only saga introspection. Layout and region routes live
// outside this module.
type Server struct {
	echo   *echo.Echo
	config *config.Config

	backend      string
	sagas        sagaRegistry
	registry     *prometheus.Registry
	metrics      *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer builds the server and registers its routes. backend names the
// primary store and is reported by readiness. reg and m may be nil, in which
// case /metrics is not served and requests are not measured.
func NewServer(cfg *config.Config, backend string, sagas sagaRegistry, reg *prometheus.Registry, m *metrics.HTTPMetrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		backend:      backend,
		sagas:        sagas,
		registry:     reg,
		metrics:      m,
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
