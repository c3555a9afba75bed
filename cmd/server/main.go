package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/gridlayout/internal/adapter/eventpublisher"
	"github.com/pscheid92/gridlayout/internal/adapter/httpserver"
	"github.com/pscheid92/gridlayout/internal/adapter/memory"
	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
	"github.com/pscheid92/gridlayout/internal/adapter/postgres"
	"github.com/pscheid92/gridlayout/internal/adapter/redis"
	"github.com/pscheid92/gridlayout/internal/app"
	"github.com/pscheid92/gridlayout/internal/platform/config"
	"github.com/pscheid92/gridlayout/internal/platform/logging"
	"github.com/pscheid92/gridlayout/internal/platform/version"
)

func runGracefulShutdown(cfg *config.Config, srv *httpserver.Server, a *app.App) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		a.Stop()

		if active := a.Registry.Active(); len(active) > 0 {
			slog.Warn("Shutting down with sagas in flight", "saga_ids", active)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, m *metrics.StoreMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, m)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config, m *metrics.StoreMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", append([]any{"env", cfg.AppEnv, "port", cfg.Port}, version.Get().LogAttrs()...)...)

	reg := metrics.NewRegistry(cfg.StoreBackend())
	storeMetrics := metrics.NewStoreMetrics(reg)

	var backend app.Backend
	var healthChecks []httpserver.HealthCheck

	if cfg.UsesPostgres() {
		pool := setupDB(cfg, storeMetrics)
		defer pool.Close()

		store := postgres.NewStore(pool)
		backend = app.Backend{Name: cfg.StoreBackend(), Store: store}
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "postgres", Check: store.Ping})
	} else {
		slog.Warn("DATABASE_URL not set, state is kept in memory and lost on restart")
		backend = app.Backend{Name: cfg.StoreBackend(), Store: memory.NewStore()}
	}

	if cfg.UsesRedis() {
		rdb := setupRedis(cfg, storeMetrics)
		defer func() { _ = rdb.Close() }()

		presence := redis.NewPresenceStore(rdb, 2*cfg.PresenceStaleAfter)
		backend.Presence = presence
		backend.Sweeper = presence
		backend.EventSinks = append(backend.EventSinks, eventpublisher.Sink{
			Name:  "redis",
			Store: redis.NewEventStream(rdb, cfg.EventStreamMaxLen),
		})
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	a := app.New(backend, clock, app.OptionsFromConfig(cfg), reg)

	srv := httpserver.NewServer(cfg, backend.Name, a.Registry, reg, metrics.NewHTTPMetrics(reg), healthChecks)
	done := runGracefulShutdown(cfg, srv, a)

	slog.Info("Backends ready", "store", backend.Name, "redis", cfg.UsesRedis())
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Server stopped")
}
