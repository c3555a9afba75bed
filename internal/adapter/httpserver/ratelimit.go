package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter guards the admin saga routes with a token bucket per client
// IP. Rejections carry Retry-After (the time to refill one token) and are
// counted per route; m may be nil.
func newRateLimiter(ratePerSecond float64, burst int, m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	retryAfter := retryAfterSeconds(ratePerSecond)

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			m.CountRateLimited(c.Path())
			slog.WarnContext(c.Request().Context(), "Admin rate limit exceeded", "client_ip", identifier, "route", c.Path())

			c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":               "rate limit exceeded",
				"retry_after_seconds": retryAfter,
			})
		},
	})
}

func retryAfterSeconds(ratePerSecond float64) int {
	if ratePerSecond <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/ratePerSecond)))
}
