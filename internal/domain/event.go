package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	EventRegionCreated    = "REGION_CREATED"
	EventRegionUpdated    = "REGION_UPDATED"
	EventRegionDeleted    = "REGION_DELETED"
	EventRegionRestored   = "REGION_RESTORED"
	EventLayoutCreated    = "LAYOUT_CREATED"
	EventVersionCreated   = "VERSION_CREATED"
	EventVersionPromoted  = "VERSION_PROMOTED"
	EventVersionPublished = "VERSION_PUBLISHED"
	EventVersionReverted  = "VERSION_REVERTED"
	EventSagaCompleted    = "SAGA_COMPLETED"
	EventSagaRolledBack   = "SAGA_ROLLED_BACK"
)

// Entity types.
const (
	EntityRegion  = "region"
	EntityLayout  = "layout"
	EntityVersion = "layout_version"
	EntitySaga    = "saga"
)

// Event is an append-only domain event.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	TenantID   uuid.UUID      `json:"tenant_id"`
	UserID     uuid.UUID      `json:"user_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// EventStore is the append-only event sink. Callers treat append failures
// as non-fatal.
type EventStore interface {
	AppendEvent(ctx context.Context, event Event) error
}
