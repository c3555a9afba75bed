package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_RegistersComponentMetrics(t *testing.T) {
	reg := NewRegistry("postgres")
	region := NewRegionMetrics(reg)
	saga := NewSagaMetrics(reg)
	NewVersionMetrics(reg)
	NewPresenceMetrics(reg)
	NewEventMetrics(reg)
	store := NewStoreMetrics(reg)

	region.Conflicts.WithLabelValues("overlap").Inc()
	saga.Outcomes.WithLabelValues("rolled_back").Add(2)
	store.BreakerState.WithLabelValues("redis").Set(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(region.Conflicts.WithLabelValues("overlap")))
	assert.Equal(t, 2.0, testutil.ToFloat64(saga.Outcomes.WithLabelValues("rolled_back")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gridlayout_region_conflicts_total"])
	assert.True(t, names["gridlayout_saga_executions_total"])
	assert.True(t, names["gridlayout_circuit_breaker_state"])
	assert.True(t, names["gridlayout_build_info"])
}

func TestNewRegistry_BuildInfoNamesBackend(t *testing.T) {
	reg := NewRegistry("memory")

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "gridlayout_build_info" {
			continue
		}
		require.Len(t, f.GetMetric(), 1)
		labels := make(map[string]string)
		for _, l := range f.GetMetric()[0].GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		assert.Equal(t, "memory", labels["backend"])
		assert.Equal(t, 1.0, f.GetMetric()[0].GetGauge().GetValue())
		return
	}
	t.Fatal("gridlayout_build_info not registered")
}

func TestHTTPMetrics_MiddlewareSkipsScrapes(t *testing.T) {
	reg := NewRegistry("memory")
	m := NewHTTPMetrics(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/health/live", "/metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/health/live", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal))
}

func TestHTTPMetrics_RouteLabels(t *testing.T) {
	m := NewHTTPMetrics(NewRegistry("memory"))

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/admin/sagas/:id", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })

	for _, path := range []string{"/admin/sagas/a", "/admin/sagas/b", "/nope"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/admin/sagas/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))

	m.CountRateLimited("/admin/sagas")
	m.CountRateLimited("")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("/admin/sagas")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("unmatched")))

	var nilMetrics *HTTPMetrics
	assert.NotPanics(t, func() { nilMetrics.CountRateLimited("/admin/sagas") })
}
