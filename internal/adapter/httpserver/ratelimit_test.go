package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
)

const testRemoteAddr = "1.2.3.4:1234"

func limitedHandler(ratePerSecond float64, burst int) (*echo.Echo, echo.HandlerFunc) {
	mw := newRateLimiter(ratePerSecond, burst, nil)
	return echo.New(), mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func callFrom(t *testing.T, e *echo.Echo, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/admin/sagas", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	e, handler := limitedHandler(10, 3)

	for range 3 {
		rec := callFrom(t, e, handler, testRemoteAddr)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	e, handler := limitedHandler(0.01, 1)

	rec := callFrom(t, e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = callFrom(t, e, handler, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.Equal(t, "100", rec.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp["error"])
	assert.InDelta(t, 100, resp["retry_after_seconds"], 0)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(5))
	assert.Equal(t, 1, retryAfterSeconds(1))
	assert.Equal(t, 2, retryAfterSeconds(0.5))
	assert.Equal(t, 1, retryAfterSeconds(0))
}

func TestRateLimiterCountsRejectionsPerRoute(t *testing.T) {
	m := metrics.NewHTTPMetrics(prometheus.NewRegistry())
	e := echo.New()
	e.GET("/admin/sagas", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, newRateLimiter(0.01, 1, m))

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/admin/sagas", nil)
		req.RemoteAddr = testRemoteAddr
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("/admin/sagas")))
}

func TestRateLimiterKeysByClientIP(t *testing.T) {
	e, handler := limitedHandler(0.01, 1)

	assert.Equal(t, http.StatusOK, callFrom(t, e, handler, testRemoteAddr).Code)
	assert.Equal(t, http.StatusOK, callFrom(t, e, handler, "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, callFrom(t, e, handler, testRemoteAddr).Code)
}
