package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

type contextKey struct{}

// Fields are request-scoped identifiers attached to every log line emitted
// with a context that carries them.
type Fields struct {
	ID       string
	TenantID string
	UserID   string
	SagaID   string
}

// NewID generates an 8-character hex correlation ID (4 random bytes).
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithID returns a new context carrying the given correlation ID.
func WithID(ctx context.Context, id string) context.Context {
	f := FromContext(ctx)
	f.ID = id
	return context.WithValue(ctx, contextKey{}, f)
}

// WithPrincipal attaches the acting tenant and user.
func WithPrincipal(ctx context.Context, tenantID, userID string) context.Context {
	f := FromContext(ctx)
	f.TenantID = tenantID
	f.UserID = userID
	return context.WithValue(ctx, contextKey{}, f)
}

// WithSaga attaches a saga ID. A saga without an outer correlation ID uses
// the saga ID as its correlation ID.
func WithSaga(ctx context.Context, sagaID string) context.Context {
	f := FromContext(ctx)
	f.SagaID = sagaID
	if f.ID == "" {
		f.ID = sagaID
	}
	return context.WithValue(ctx, contextKey{}, f)
}

// FromContext returns the fields carried by ctx (zero value if none).
func FromContext(ctx context.Context) Fields {
	f, _ := ctx.Value(contextKey{}).(Fields)
	return f
}

// ID extracts the correlation ID from ctx, returning ("", false) if not present.
func ID(ctx context.Context) (string, bool) {
	id := FromContext(ctx).ID
	return id, id != ""
}

// Handler wraps an existing slog.Handler and injects the non-empty
// correlation fields of the record's context.
type Handler struct {
	inner slog.Handler
}

// NewHandler creates a correlation-aware handler wrapping the given handler.
func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	f := FromContext(ctx)
	if f.ID != "" {
		r.AddAttrs(slog.String("correlation_id", f.ID))
	}
	if f.TenantID != "" {
		r.AddAttrs(slog.String("tenant_id", f.TenantID))
	}
	if f.UserID != "" {
		r.AddAttrs(slog.String("user_id", f.UserID))
	}
	if f.SagaID != "" {
		r.AddAttrs(slog.String("saga_id", f.SagaID))
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}

// Metadata returns the non-empty correlation and saga IDs as a map suitable
// for event metadata.
func Metadata(ctx context.Context) map[string]any {
	f := FromContext(ctx)
	md := map[string]any{}
	if f.ID != "" {
		md["correlation_id"] = f.ID
	}
	if f.SagaID != "" {
		md["saga_id"] = f.SagaID
	}
	return md
}
