package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Layout struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LayoutRepository abstracts layout persistence.
type LayoutRepository interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*Layout, error)
	Insert(ctx context.Context, layout Layout) (*Layout, error)
}
