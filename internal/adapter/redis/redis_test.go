package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNewClient_ConnectsWithHooks(t *testing.T) {
	mr := miniredis.RunT(t)
	m := metrics.NewStoreMetrics(prometheus.NewRegistry())

	rdb, err := NewClient(context.Background(), "redis://"+mr.Addr(), m)
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	_, err = rdb.Get(context.Background(), "missing").Result()
	assert.ErrorIs(t, err, goredis.Nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisOps.WithLabelValues("set", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisOps.WithLabelValues("get", "success")))
}

func TestNewClient_InvalidURL(t *testing.T) {
	rdb, err := NewClient(context.Background(), "not-a-url", nil)
	assert.Error(t, err)
	assert.Nil(t, rdb)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rdb, err := NewClient(context.Background(), "redis://"+addr, nil)
	assert.Error(t, err)
	assert.Nil(t, rdb)
}
