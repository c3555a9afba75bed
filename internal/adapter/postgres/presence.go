package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/gridlayout/internal/domain"
)

const presenceColumns = `region_id, tenant_id, user_id, session_id, is_editing, last_seen`

// PresenceRepo stores presence heartbeats in an unlogged table; losing them
// on a crash only costs a few seconds of stale UI.
type PresenceRepo struct {
	pool *pgxpool.Pool
}

var _ domain.PresenceRepository = (*PresenceRepo)(nil)

func NewPresenceRepo(pool *pgxpool.Pool) *PresenceRepo {
	return &PresenceRepo{pool: pool}
}

func scanPresence(row pgx.CollectableRow) (domain.PresenceRecord, error) {
	var p domain.PresenceRecord
	err := row.Scan(&p.RegionID, &p.TenantID, &p.UserID, &p.SessionID, &p.IsEditing, &p.LastSeen)
	return p, err
}

func (r *PresenceRepo) Upsert(ctx context.Context, rec domain.PresenceRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO region_presence (`+presenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (region_id, user_id, session_id) DO UPDATE SET
			is_editing = EXCLUDED.is_editing,
			last_seen = EXCLUDED.last_seen
		WHERE region_presence.tenant_id = EXCLUDED.tenant_id
	`, rec.RegionID, rec.TenantID, rec.UserID, rec.SessionID, rec.IsEditing, rec.LastSeen)
	if err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}
	return nil
}

func (r *PresenceRepo) DeleteStale(ctx context.Context, tenantID, regionID uuid.UUID, cutoff time.Time) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM region_presence
		WHERE tenant_id = $1 AND region_id = $2 AND last_seen < $3
	`, tenantID, regionID, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete stale presence: %w", err)
	}
	return nil
}

func (r *PresenceRepo) ListByRegion(ctx context.Context, tenantID, regionID uuid.UUID) ([]domain.PresenceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+presenceColumns+` FROM region_presence
		WHERE tenant_id = $1 AND region_id = $2
		ORDER BY last_seen DESC, session_id`, tenantID, regionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}
	return collectPresence(rows)
}

func (r *PresenceRepo) ListEditing(ctx context.Context, tenantID uuid.UUID, regionIDs []uuid.UUID, since time.Time) ([]domain.PresenceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+presenceColumns+` FROM region_presence
		WHERE tenant_id = $1 AND region_id = ANY($2::uuid[]) AND is_editing AND last_seen >= $3
		ORDER BY last_seen DESC, session_id`, tenantID, uuidStrings(regionIDs), since)
	if err != nil {
		return nil, fmt.Errorf("failed to list editing presence: %w", err)
	}
	return collectPresence(rows)
}

// SetEditing creates the row when turning editing on; turning it off for a
// session that has no row is a no-op.
func (r *PresenceRepo) SetEditing(ctx context.Context, tenantID, regionID, userID uuid.UUID, sessionID string, editing bool, now time.Time) error {
	var err error
	if editing {
		err = r.Upsert(ctx, domain.PresenceRecord{
			RegionID:  regionID,
			TenantID:  tenantID,
			UserID:    userID,
			SessionID: sessionID,
			IsEditing: true,
			LastSeen:  now,
		})
	} else {
		_, err = r.pool.Exec(ctx, `
			UPDATE region_presence SET is_editing = FALSE, last_seen = $5
			WHERE tenant_id = $1 AND region_id = $2 AND user_id = $3 AND session_id = $4
		`, tenantID, regionID, userID, sessionID, now)
	}
	if err != nil {
		return fmt.Errorf("failed to set editing flag: %w", err)
	}
	return nil
}

func collectPresence(rows pgx.Rows) ([]domain.PresenceRecord, error) {
	records, err := pgx.CollectRows(rows, scanPresence)
	if err != nil {
		return nil, fmt.Errorf("failed to scan presence: %w", err)
	}
	return records, nil
}
