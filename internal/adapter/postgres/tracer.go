package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
)

// QueryTracer implements pgx.QueryTracer and records per-verb query metrics.
type QueryTracer struct {
	metrics *metrics.StoreMetrics
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

func NewQueryTracer(m *metrics.StoreMetrics) *QueryTracer {
	return &QueryTracer{metrics: m}
}

type queryContextKey struct{}

type queryContext struct {
	start time.Time
	name  string
}

func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{start: time.Now(), name: queryName(data.SQL)})
}

func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}

	t.metrics.DBQueryDuration.WithLabelValues(qctx.name).Observe(time.Since(qctx.start).Seconds())
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		t.metrics.DBErrors.WithLabelValues(qctx.name).Inc()
	}
}

// queryName reduces a statement to its leading verb to keep label
// cardinality bounded.
func queryName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToUpper(fields[0])
}
