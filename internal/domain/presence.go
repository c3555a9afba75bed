package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PresenceRecord is an ephemeral editing heartbeat keyed by (region, user, session).
type PresenceRecord struct {
	RegionID  uuid.UUID `json:"region_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	UserID    uuid.UUID `json:"user_id"`
	SessionID string    `json:"session_id"`
	IsEditing bool      `json:"is_editing"`
	LastSeen  time.Time `json:"last_seen"`
}

// PresenceRepository abstracts presence persistence. Implementations may
// expire rows on their own; DeleteStale must still honour the cutoff.
type PresenceRepository interface {
	Upsert(ctx context.Context, rec PresenceRecord) error
	DeleteStale(ctx context.Context, tenantID, regionID uuid.UUID, cutoff time.Time) error
	ListByRegion(ctx context.Context, tenantID, regionID uuid.UUID) ([]PresenceRecord, error)
	// ListEditing returns is_editing rows seen after since for any of regionIDs.
	ListEditing(ctx context.Context, tenantID uuid.UUID, regionIDs []uuid.UUID, since time.Time) ([]PresenceRecord, error)
	SetEditing(ctx context.Context, tenantID, regionID, userID uuid.UUID, sessionID string, editing bool, now time.Time) error
}
