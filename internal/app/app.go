package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/gridlayout/internal/adapter/eventpublisher"
	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
	"github.com/pscheid92/gridlayout/internal/adapter/redis"
	"github.com/pscheid92/gridlayout/internal/collab"
	"github.com/pscheid92/gridlayout/internal/dashboard"
	"github.com/pscheid92/gridlayout/internal/domain"
	"github.com/pscheid92/gridlayout/internal/platform/config"
	"github.com/pscheid92/gridlayout/internal/saga"
	"github.com/pscheid92/gridlayout/internal/versioning"
)

const sweepTimeout = 30 * time.Second

// PresenceSweeper removes stale presence entries across all regions.
type PresenceSweeper interface {
	Sweep(ctx context.Context, cutoff time.Time, dryRun bool) (redis.SweepStats, error)
}

// Backend describes where state lives. Store provides every repository;
// Presence, when set, replaces the store's presence repository. EventSinks
// receive every event after the store's event log has accepted it.
type Backend struct {
	Name       string
	Store      domain.Store
	Presence   domain.PresenceRepository
	EventSinks []eventpublisher.Sink
	Sweeper    PresenceSweeper
}

// Options tunes the components. Zero values fall back to the component
// defaults, except PresenceWriteRate, where zero disables throttling.
type Options struct {
	PresenceStaleAfter    time.Duration
	PresenceWriteRate     float64
	PresenceWriteBurst    int
	SagaBackoffInitial    time.Duration
	SagaBackoffMax        time.Duration
	VersionCreateAttempts int
	SweepInterval         time.Duration // 0 disables the background sweep
}

// OptionsFromConfig maps the environment configuration onto Options. The
// sweep runs once per staleness window.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PresenceStaleAfter:    cfg.PresenceStaleAfter,
		PresenceWriteRate:     cfg.PresenceWriteRate,
		PresenceWriteBurst:    cfg.PresenceWriteBurst,
		SagaBackoffInitial:    cfg.SagaBackoffInitial,
		SagaBackoffMax:        cfg.SagaBackoffMax,
		VersionCreateAttempts: cfg.VersionCreateTries,
		SweepInterval:         cfg.PresenceStaleAfter,
	}
}

// App holds the assembled components.
type App struct {
	Dashboard *dashboard.Service
	Versions  *versioning.Engine
	Presence  *collab.Tracker
	Sagas     *saga.Orchestrator
	Registry  *saga.MemoryRegistry
	Events    *eventpublisher.EventPublisher

	sweeper    PresenceSweeper
	clock      clockwork.Clock
	staleAfter time.Duration
	metrics    *metrics.PresenceMetrics
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// routedStore overrides the presence and event repositories of a store.
type routedStore struct {
	domain.Store
	presence domain.PresenceRepository
	events   domain.EventStore
}

func (s routedStore) Presence() domain.PresenceRepository { return s.presence }
func (s routedStore) Events() domain.EventStore { return s.events }

// New assembles the components. reg may be nil to disable metrics. When the
// backend has a sweeper and opts.SweepInterval is positive, the sweep timer
// starts immediately; call Stop to end it.
func New(backend Backend, clock clockwork.Clock, opts Options, reg prometheus.Registerer) *App {
	var (
		regionMetrics   *metrics.RegionMetrics
		versionMetrics  *metrics.VersionMetrics
		presenceMetrics *metrics.PresenceMetrics
		sagaMetrics     *metrics.SagaMetrics
		eventMetrics    *metrics.EventMetrics
	)
	if reg != nil {
		regionMetrics = metrics.NewRegionMetrics(reg)
		versionMetrics = metrics.NewVersionMetrics(reg)
		presenceMetrics = metrics.NewPresenceMetrics(reg)
		sagaMetrics = metrics.NewSagaMetrics(reg)
		eventMetrics = metrics.NewEventMetrics(reg)
	}

	presence := backend.Presence
	if presence == nil {
		presence = backend.Store.Presence()
	}
	events := eventpublisher.New(backend.Name, backend.Store.Events(), eventMetrics, backend.EventSinks...)
	store := routedStore{Store: backend.Store, presence: presence, events: events}

	staleAfter := opts.PresenceStaleAfter
	if staleAfter <= 0 {
		staleAfter = collab.DefaultStaleAfter
	}

	sagaOpts := saga.Options{InitialBackoff: opts.SagaBackoffInitial, MaxBackoff: opts.SagaBackoffMax}
	if sagaOpts.InitialBackoff <= 0 {
		sagaOpts.InitialBackoff = saga.DefaultInitialBackoff
	}
	if sagaOpts.MaxBackoff <= 0 {
		sagaOpts.MaxBackoff = saga.DefaultMaxBackoff
	}

	dash := dashboard.NewService(store, clock, regionMetrics)
	registry := saga.NewMemoryRegistry()
	tracker := collab.NewTracker(store.Presence(), clock, collab.Options{
		StaleAfter: staleAfter,
		WriteRate:  opts.PresenceWriteRate,
		WriteBurst: opts.PresenceWriteBurst,
	}, presenceMetrics)
	orchestrator := saga.NewOrchestrator(dash, events, registry, clock, sagaOpts, sagaMetrics)

	a := &App{
		Dashboard: dash,
		Versions:  versioning.NewEngine(store, clock, opts.VersionCreateAttempts, versionMetrics),
		Presence:  tracker,
		Sagas:     orchestrator,
		Registry:  registry,
		Events:    events,

		sweeper:    backend.Sweeper,
		clock:      clock,
		staleAfter: staleAfter,
		metrics:    presenceMetrics,
		stopCh:     make(chan struct{}),
	}

	if a.sweeper != nil && opts.SweepInterval > 0 {
		a.startSweepTimer(opts.SweepInterval)
	}
	return a
}

// SweepPresence removes presence entries older than the staleness window.
// It is a no-op without a sweeper.
func (a *App) SweepPresence(ctx context.Context) {
	if a.sweeper == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	cutoff := a.clock.Now().Add(-a.staleAfter)
	stats, err := a.sweeper.Sweep(ctx, cutoff, false)
	if a.metrics != nil {
		a.metrics.Swept.Add(float64(stats.Stale))
	}
	if err != nil {
		slog.ErrorContext(ctx, "Presence sweep failed", "removed", stats.Stale, "error", err)
		return
	}
	if stats.Stale > 0 || stats.Skipped > 0 {
		slog.InfoContext(ctx, "Presence sweep completed", "keys", stats.Keys, "removed", stats.Stale, "skipped", stats.Skipped)
	}
}

func (a *App) startSweepTimer(interval time.Duration) {
	ticker := a.clock.NewTicker(interval)
	a.wg.Go(func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				a.SweepPresence(context.Background())
			case <-a.stopCh:
				return
			}
		}
	})
	slog.Info("Presence sweep timer started", "interval", interval)
}

// Stop stops the sweep timer and waits for an in-flight sweep to finish.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
	a.wg.Wait()
}
