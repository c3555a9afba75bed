//go:build integration

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/pscheid92/gridlayout/internal/domain"
)

var testRedisURL string

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := rediscontainer.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate redis container: %v\n", err)
	}
	os.Exit(code)
}

func setupIntegrationClient(t *testing.T) *goredis.Client {
	t.Helper()

	ctx := context.Background()
	client, err := NewClient(ctx, testRedisURL, nil)
	require.NoError(t, err)
	require.NoError(t, client.FlushAll(ctx).Err())

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_PresenceRoundTrip(t *testing.T) {
	rdb := setupIntegrationClient(t)
	store := NewPresenceStore(rdb, time.Minute)
	ctx := context.Background()
	tenantID, regionID, userID := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, store.SetEditing(ctx, tenantID, regionID, userID, "s1", true, base))
	require.NoError(t, store.SetEditing(ctx, tenantID, regionID, userID, "s1", false, base.Add(time.Second)))
	require.NoError(t, store.SetEditing(ctx, tenantID, regionID, uuid.New(), "ghost", false, base))

	records, err := store.ListByRegion(ctx, tenantID, regionID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].IsEditing)

	ttl, err := rdb.PTTL(ctx, presenceKey(tenantID, regionID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestIntegration_SweepAcrossKeys(t *testing.T) {
	rdb := setupIntegrationClient(t)
	store := NewPresenceStore(rdb, time.Hour)
	ctx := context.Background()
	tenantID := uuid.New()

	for range 250 {
		seedPresence(t, store, tenantID, uuid.New(), base.Add(-time.Hour))
	}

	stats, err := store.Sweep(ctx, base, false)
	require.NoError(t, err)
	assert.Equal(t, 250, stats.Keys)
	assert.Equal(t, 250, stats.Stale)
}

func TestIntegration_EventStreamTrimmed(t *testing.T) {
	rdb := setupIntegrationClient(t)
	stream := NewEventStream(rdb, 10)
	ctx := context.Background()
	tenantID := uuid.New()

	for range 500 {
		require.NoError(t, stream.AppendEvent(ctx, domain.Event{
			ID:         uuid.New(),
			EventType:  domain.EventRegionUpdated,
			EntityType: domain.EntityRegion,
			EntityID:   uuid.NewString(),
			TenantID:   tenantID,
			Timestamp:  base,
		}))
	}

	n, err := rdb.XLen(ctx, "events:"+tenantID.String()).Result()
	require.NoError(t, err)
	assert.Less(t, n, int64(500))
}
