package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/gridlayout/internal/adapter/eventpublisher"
	"github.com/pscheid92/gridlayout/internal/adapter/memory"
	"github.com/pscheid92/gridlayout/internal/adapter/redis"
	"github.com/pscheid92/gridlayout/internal/dashboard"
	"github.com/pscheid92/gridlayout/internal/domain"
	"github.com/pscheid92/gridlayout/internal/platform/config"
	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
	"github.com/pscheid92/gridlayout/internal/saga"
)

var testUser = domain.User{UserID: uuid.New(), TenantID: uuid.New()}

// --- Mock implementations ---

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) AppendEvent(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

type mockSweeper struct {
	sweepFn func(ctx context.Context, cutoff time.Time, dryRun bool) (redis.SweepStats, error)
}

func (m *mockSweeper) Sweep(ctx context.Context, cutoff time.Time, dryRun bool) (redis.SweepStats, error) {
	if m.sweepFn != nil {
		return m.sweepFn(ctx, cutoff, dryRun)
	}
	return redis.SweepStats{}, errors.New("not implemented")
}

func widget(row, col, rowSpan, colSpan int) domain.RegionFields {
	return domain.RegionFields{
		RegionType: domain.RegionTypeWidget,
		GridRow:    row,
		GridCol:    col,
		RowSpan:    rowSpan,
		ColSpan:    colSpan,
		Config:     json.RawMessage(`{}`),
	}
}

func TestNew_EventsReachStoreAndSinks(t *testing.T) {
	store := memory.NewStore()
	sink := &recordingSink{}
	a := New(Backend{
		Name:       "memory",
		Store:      store,
		EventSinks: []eventpublisher.Sink{{Name: "recorder", Store: sink}},
	}, clockwork.NewFakeClock(), Options{}, nil)
	defer a.Stop()
	ctx := context.Background()

	layout, err := a.Dashboard.CreateLayout(ctx, testUser, "Main", true)
	require.NoError(t, err)
	_, err = a.Dashboard.CreateRegion(ctx, testUser, dashboard.CreateRegionInput{LayoutID: layout.ID, RegionFields: widget(0, 0, 2, 6)})
	require.NoError(t, err)
	_, err = a.Versions.CreateVersion(ctx, testUser, layout.ID, domain.VersionDraft, "first")
	require.NoError(t, err)

	want := []string{domain.EventLayoutCreated, domain.EventRegionCreated, domain.EventVersionCreated}
	assert.Equal(t, want, sink.types())

	var logged []string
	for _, e := range store.EventLog() {
		logged = append(logged, e.EventType)
	}
	assert.Equal(t, want, logged)
}

func TestNew_PresenceOverride(t *testing.T) {
	base := memory.NewStore()
	presence := memory.NewStore().Presence()
	a := New(Backend{Name: "memory", Store: base, Presence: presence}, clockwork.NewFakeClock(), Options{}, nil)
	defer a.Stop()
	ctx := context.Background()
	regionID := uuid.New()

	a.Presence.UpdatePresence(ctx, testUser.TenantID, regionID, testUser.UserID, "s1", true)

	routed, err := presence.ListByRegion(ctx, testUser.TenantID, regionID)
	require.NoError(t, err)
	assert.Len(t, routed, 1)

	direct, err := base.Presence().ListByRegion(ctx, testUser.TenantID, regionID)
	require.NoError(t, err)
	assert.Empty(t, direct)
}

func TestNew_BulkSagaRollsBackThroughFacade(t *testing.T) {
	store := memory.NewStore()
	sink := &recordingSink{}
	reg := prometheus.NewRegistry()
	a := New(Backend{
		Name:       "memory",
		Store:      store,
		EventSinks: []eventpublisher.Sink{{Name: "recorder", Store: sink}},
	}, clockwork.NewFakeClock(), Options{}, reg)
	defer a.Stop()
	ctx := context.Background()

	layout, err := a.Dashboard.CreateLayout(ctx, testUser, "Bulk", false)
	require.NoError(t, err)

	s, err := a.Sagas.CreateBulkRegionSaga(testUser, layout.ID, []saga.BulkOperation{
		{Kind: saga.OpCreate, Fields: widget(0, 0, 1, 4)},
		{Kind: saga.OpCreate, Fields: widget(0, 2, 1, 4)},
	})
	require.NoError(t, err)

	result := a.Sagas.ExecuteSaga(ctx, s)

	require.False(t, result.Success)
	assert.ErrorIs(t, result.Err, apperrors.ErrOverlapConflict)
	assert.Equal(t, []string{"1-create"}, result.CompensatedSteps)
	assert.Empty(t, a.Registry.Active())

	count, err := a.Dashboard.CountRegions(ctx, testUser, layout.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Contains(t, sink.types(), domain.EventSagaRolledBack)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gridlayout_saga_executions_total"])
	assert.True(t, names["gridlayout_events_appended_total"])
}

func TestSweepPresence_UsesStalenessCutoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := prometheus.NewRegistry()
	var gotCutoff time.Time
	var gotDryRun bool
	sweeper := &mockSweeper{sweepFn: func(_ context.Context, cutoff time.Time, dryRun bool) (redis.SweepStats, error) {
		gotCutoff, gotDryRun = cutoff, dryRun
		return redis.SweepStats{Keys: 4, Stale: 3}, nil
	}}
	a := New(Backend{Name: "memory", Store: memory.NewStore(), Sweeper: sweeper}, clock, Options{PresenceStaleAfter: 2 * time.Minute}, reg)
	defer a.Stop()

	a.SweepPresence(context.Background())

	assert.Equal(t, clock.Now().Add(-2*time.Minute), gotCutoff)
	assert.False(t, gotDryRun)
	assert.InDelta(t, 3, testutil.ToFloat64(a.metrics.Swept), 0)
}

func TestSweepPresence_ErrorIsSwallowed(t *testing.T) {
	sweeper := &mockSweeper{}
	a := New(Backend{Name: "memory", Store: memory.NewStore(), Sweeper: sweeper}, clockwork.NewFakeClock(), Options{}, nil)
	defer a.Stop()

	assert.NotPanics(t, func() { a.SweepPresence(context.Background()) })
}

func TestSweepPresence_NoSweeper(t *testing.T) {
	a := New(Backend{Name: "memory", Store: memory.NewStore()}, clockwork.NewFakeClock(), Options{SweepInterval: time.Minute}, nil)

	a.SweepPresence(context.Background())
	a.Stop()
}

func TestSweepTimer_RunsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	swept := make(chan struct{}, 1)
	sweeper := &mockSweeper{sweepFn: func(context.Context, time.Time, bool) (redis.SweepStats, error) {
		swept <- struct{}{}
		return redis.SweepStats{}, nil
	}}
	a := New(Backend{Name: "memory", Store: memory.NewStore(), Sweeper: sweeper}, clock, Options{SweepInterval: time.Minute}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Minute)

	select {
	case <-swept:
	case <-ctx.Done():
		t.Fatal("sweep did not run")
	}

	a.Stop()
	a.Stop()
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		PresenceStaleAfter: 90 * time.Second,
		PresenceWriteRate:  20,
		PresenceWriteBurst: 40,
		SagaBackoffInitial: time.Second,
		SagaBackoffMax:     8 * time.Second,
		VersionCreateTries: 7,
	}

	opts := OptionsFromConfig(cfg)

	assert.Equal(t, Options{
		PresenceStaleAfter:    90 * time.Second,
		PresenceWriteRate:     20,
		PresenceWriteBurst:    40,
		SagaBackoffInitial:    time.Second,
		SagaBackoffMax:        8 * time.Second,
		VersionCreateAttempts: 7,
		SweepInterval:         90 * time.Second,
	}, opts)
}
