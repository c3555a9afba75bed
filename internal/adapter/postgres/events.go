package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/gridlayout/internal/domain"
)

// EventRepo appends domain events. Rows are never updated or deleted.
type EventRepo struct {
	pool *pgxpool.Pool
}

var _ domain.EventStore = (*EventRepo)(nil)

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) AppendEvent(ctx context.Context, e domain.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	payload, err := marshalNullable(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	metadata, err := marshalNullable(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode event metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO domain_events (id, event_type, entity_type, entity_id, tenant_id, user_id, payload, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.EventType, e.EntityType, e.EntityID, e.TenantID, e.UserID, payload, metadata, e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func marshalNullable(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
