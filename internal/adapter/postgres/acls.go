package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/gridlayout/internal/domain"
)

type ACLRepo struct {
	pool *pgxpool.Pool
}

var _ domain.ACLRepository = (*ACLRepo)(nil)

func NewACLRepo(pool *pgxpool.Pool) *ACLRepo {
	return &ACLRepo{pool: pool}
}

func (r *ACLRepo) Upsert(ctx context.Context, acl domain.RegionACL) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO region_acls (region_id, tenant_id, principal_type, principal_id, can_read, can_edit, can_share)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (region_id, principal_type, principal_id) DO UPDATE SET
			can_read = EXCLUDED.can_read,
			can_edit = EXCLUDED.can_edit,
			can_share = EXCLUDED.can_share
		WHERE region_acls.tenant_id = EXCLUDED.tenant_id
	`, acl.RegionID, acl.TenantID, string(acl.PrincipalType), acl.PrincipalID,
		acl.Permissions.Read, acl.Permissions.Edit, acl.Permissions.Share)
	if err != nil {
		return fmt.Errorf("failed to upsert region acl: %w", err)
	}
	return nil
}

func (r *ACLRepo) ListByRegion(ctx context.Context, tenantID, regionID uuid.UUID) ([]domain.RegionACL, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT region_id, tenant_id, principal_type, principal_id, can_read, can_edit, can_share
		FROM region_acls
		WHERE tenant_id = $1 AND region_id = $2
		ORDER BY principal_type, principal_id`, tenantID, regionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list region acls: %w", err)
	}

	acls, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RegionACL, error) {
		var a domain.RegionACL
		err := row.Scan(&a.RegionID, &a.TenantID, &a.PrincipalType, &a.PrincipalID,
			&a.Permissions.Read, &a.Permissions.Edit, &a.Permissions.Share)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan region acls: %w", err)
	}
	return acls, nil
}
