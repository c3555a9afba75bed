package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
)

func failing(err error) goredis.ProcessHook {
	return func(context.Context, goredis.Cmder) error { return err }
}

func run(t *testing.T, hook *CircuitBreakerHook, next goredis.ProcessHook) error {
	t.Helper()
	ctx := context.Background()
	return hook.ProcessHook(next)(ctx, goredis.NewStringCmd(ctx, "get", "key"))
}

func fastHook(m *metrics.StoreMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        "redis-test",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     100 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, m)
}

func TestCircuitBreakerHook_NormalOperation(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	assert.Equal(t, gobreaker.StateClosed, hook.State())

	for range 10 {
		assert.NoError(t, run(t, hook, failing(nil)))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
	counts := hook.Counts()
	assert.Equal(t, uint32(10), counts.Requests)
	assert.Equal(t, uint32(10), counts.TotalSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)
}

func TestCircuitBreakerHook_NilIsNotAFailure(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)

	for range 10 {
		err := run(t, hook, failing(goredis.Nil))
		assert.Equal(t, goredis.Nil, err)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
	assert.Equal(t, uint32(0), hook.Counts().TotalFailures)
}

func TestCircuitBreakerHook_TransientFailuresStayClosed(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)

	for range 2 {
		err := run(t, hook, failing(errors.New("connection refused")))
		assert.EqualError(t, err, "connection refused")
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
}

func TestCircuitBreakerHook_OpensAndFailsFast(t *testing.T) {
	m := metrics.NewStoreMetrics(prometheus.NewRegistry())
	hook := NewCircuitBreakerHook(m)

	for range 5 {
		_ = run(t, hook, failing(errors.New("connection timeout")))
	}
	require.Equal(t, gobreaker.StateOpen, hook.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("redis")))

	called := false
	err := run(t, hook, func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.False(t, called, "Redis should not be called when circuit is open")
}

func TestCircuitBreakerHook_RecoversThroughHalfOpen(t *testing.T) {
	hook := fastHook(nil)

	for range 3 {
		_ = run(t, hook, failing(errors.New("failure")))
	}
	require.Equal(t, gobreaker.StateOpen, hook.State())

	time.Sleep(150 * time.Millisecond)

	require.NoError(t, run(t, hook, failing(nil)))
	assert.Equal(t, gobreaker.StateHalfOpen, hook.State())

	for range 2 {
		require.NoError(t, run(t, hook, failing(nil)))
	}
	assert.Equal(t, gobreaker.StateClosed, hook.State())
}

func TestCircuitBreakerHook_PipelineCounts(t *testing.T) {
	hook := fastHook(nil)
	ctx := context.Background()

	pipeline := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error {
		return errors.New("pipeline broken")
	})
	for range 3 {
		_ = pipeline(ctx, nil)
	}

	assert.Equal(t, gobreaker.StateOpen, hook.State())
}

func TestStateToFloat(t *testing.T) {
	assert.Equal(t, 0.0, stateToFloat(gobreaker.StateClosed))
	assert.Equal(t, 1.0, stateToFloat(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, stateToFloat(gobreaker.StateOpen))
}
