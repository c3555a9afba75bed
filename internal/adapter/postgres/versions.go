package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/gridlayout/internal/domain"
)

const (
	versionColumns = `id, layout_id, tenant_id, version_number, status, payload, diff, created_by, created_at, notes`

	versionNumberConstraint = "layout_versions_number_unique"
	onePublishedIndex       = "idx_layout_versions_one_published"
)

type VersionRepo struct {
	pool *pgxpool.Pool
}

var _ domain.VersionRepository = (*VersionRepo)(nil)

func NewVersionRepo(pool *pgxpool.Pool) *VersionRepo {
	return &VersionRepo{pool: pool}
}

func scanVersion(row pgx.CollectableRow) (domain.LayoutVersion, error) {
	var (
		v       domain.LayoutVersion
		payload []byte
		diff    []byte
	)
	if err := row.Scan(&v.ID, &v.LayoutID, &v.TenantID, &v.VersionNumber, &v.Status,
		&payload, &diff, &v.CreatedBy, &v.CreatedAt, &v.Notes); err != nil {
		return v, err
	}

	if err := json.Unmarshal(payload, &v.Payload); err != nil {
		return v, fmt.Errorf("failed to decode version payload: %w", err)
	}
	if diff != nil {
		v.Diff = &domain.VersionDiff{}
		if err := json.Unmarshal(diff, v.Diff); err != nil {
			return v, fmt.Errorf("failed to decode version diff: %w", err)
		}
	}
	return v, nil
}

func (r *VersionRepo) Insert(ctx context.Context, v domain.LayoutVersion) (*domain.LayoutVersion, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	payload, err := json.Marshal(v.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode version payload: %w", err)
	}
	var diff []byte
	if v.Diff != nil {
		if diff, err = json.Marshal(v.Diff); err != nil {
			return nil, fmt.Errorf("failed to encode version diff: %w", err)
		}
	}

	rows, err := r.pool.Query(ctx, `
		INSERT INTO layout_versions (`+versionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+versionColumns,
		v.ID, v.LayoutID, v.TenantID, v.VersionNumber, string(v.Status), payload, diff, v.CreatedBy, v.CreatedAt, v.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}

	inserted, err := pgx.CollectExactlyOneRow(rows, scanVersion)
	if constraint, dup := uniqueViolationOn(err); dup {
		switch constraint {
		case versionNumberConstraint:
			return nil, domain.ErrDuplicateVersionNumber
		case onePublishedIndex:
			return nil, domain.ErrAlreadyPublished
		default:
			return nil, domain.ErrAlreadyExists
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}
	return &inserted, nil
}

func (r *VersionRepo) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.LayoutVersion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM layout_versions WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &v, nil
}

func (r *VersionRepo) List(ctx context.Context, tenantID, layoutID uuid.UUID) ([]domain.LayoutVersion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+versionColumns+` FROM layout_versions
		WHERE tenant_id = $1 AND layout_id = $2
		ORDER BY version_number DESC`, tenantID, layoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versions, err := pgx.CollectRows(rows, scanVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

func (r *VersionRepo) Latest(ctx context.Context, tenantID, layoutID uuid.UUID) (*domain.LayoutVersion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+versionColumns+` FROM layout_versions
		WHERE tenant_id = $1 AND layout_id = $2
		ORDER BY version_number DESC
		LIMIT 1`, tenantID, layoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return &v, nil
}

func (r *VersionRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to domain.VersionStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE layout_versions SET status = $4
		WHERE tenant_id = $1 AND id = $2 AND status = $3`, tenantID, id, string(from), string(to))
	if _, dup := uniqueViolationOn(err); dup {
		return domain.ErrAlreadyPublished
	}
	if err != nil {
		return fmt.Errorf("failed to update version status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM layout_versions WHERE tenant_id = $1 AND id = $2)`, tenantID, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check version: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrNoRowsAffected
}

// Publish demotes the current published version and promotes the target in
// one transaction. The target row is locked first so two publishers of the
// same version serialize; the partial unique index catches publishers of
// different versions.
func (r *VersionRepo) Publish(ctx context.Context, tenantID, layoutID, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var status domain.VersionStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM layout_versions
		WHERE tenant_id = $1 AND layout_id = $2 AND id = $3
		FOR UPDATE`, tenantID, layoutID, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock version: %w", err)
	}
	if status == domain.VersionPublished {
		return domain.ErrAlreadyPublished
	}

	if _, err := tx.Exec(ctx, `
		UPDATE layout_versions SET status = 'preview'
		WHERE tenant_id = $1 AND layout_id = $2 AND status = 'published'`, tenantID, layoutID); err != nil {
		return fmt.Errorf("failed to demote published version: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE layout_versions SET status = 'published'
		WHERE tenant_id = $1 AND layout_id = $2 AND id = $3`, tenantID, layoutID, id)
	if _, dup := uniqueViolationOn(err); dup {
		return fmt.Errorf("concurrent publish on layout %s: %w", layoutID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to publish version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit publish: %w", err)
	}
	return nil
}
