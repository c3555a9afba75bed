package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/gridlayout/internal/domain"
)

// regionColumns must match the Scan order in scanRegion.
const regionColumns = `id, layout_id, tenant_id, user_id, region_type, grid_row, grid_col, row_span, col_span,
	min_width, min_height, is_collapsed, is_locked, is_hidden_mobile, config, widget_type, widget_config,
	display_order, version, created_at, updated_at, deleted_at`

type RegionRepo struct {
	pool *pgxpool.Pool
}

var _ domain.RegionRepository = (*RegionRepo)(nil)

func NewRegionRepo(pool *pgxpool.Pool) *RegionRepo {
	return &RegionRepo{pool: pool}
}

func scanRegion(row pgx.CollectableRow) (domain.Region, error) {
	var r domain.Region
	err := row.Scan(
		&r.ID, &r.LayoutID, &r.TenantID, &r.UserID, &r.RegionType,
		&r.GridRow, &r.GridCol, &r.RowSpan, &r.ColSpan,
		&r.MinWidth, &r.MinHeight, &r.IsCollapsed, &r.IsLocked, &r.IsHiddenMobile,
		&r.Config, &r.WidgetType, &r.WidgetConfig,
		&r.DisplayOrder, &r.Version, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt,
	)
	return r, err
}

// whereClause renders the filter. The tenant predicate is always present.
func whereClause(filter domain.RegionFilter) (string, []any) {
	conds := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}

	if filter.LayoutID != uuid.Nil {
		args = append(args, filter.LayoutID)
		conds = append(conds, fmt.Sprintf("layout_id = $%d", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, uuidStrings(filter.IDs))
		conds = append(conds, fmt.Sprintf("id = ANY($%d::uuid[])", len(args)))
	}
	if !filter.IncludeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *RegionRepo) Find(ctx context.Context, filter domain.RegionFilter) ([]domain.Region, error) {
	where, args := whereClause(filter)
	rows, err := r.pool.Query(ctx, `SELECT `+regionColumns+` FROM regions`+where+
		` ORDER BY display_order, grid_row, grid_col, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}

	regions, err := pgx.CollectRows(rows, scanRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to scan regions: %w", err)
	}
	return regions, nil
}

func (r *RegionRepo) Count(ctx context.Context, filter domain.RegionFilter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM regions`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count regions: %w", err)
	}
	return n, nil
}

func (r *RegionRepo) Insert(ctx context.Context, region domain.Region) (*domain.Region, error) {
	if region.ID == uuid.Nil {
		region.ID = uuid.New()
	}
	if region.Version == 0 {
		region.Version = 1
	}

	rows, err := r.pool.Query(ctx, `
		INSERT INTO regions (`+regionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING `+regionColumns,
		region.ID, region.LayoutID, region.TenantID, region.UserID, string(region.RegionType),
		region.GridRow, region.GridCol, region.RowSpan, region.ColSpan,
		region.MinWidth, region.MinHeight, region.IsCollapsed, region.IsLocked, region.IsHiddenMobile,
		region.Config, region.WidgetType, region.WidgetConfig,
		region.DisplayOrder, region.Version, region.CreatedAt, region.UpdatedAt, region.DeletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert region: %w", err)
	}

	inserted, err := pgx.CollectExactlyOneRow(rows, scanRegion)
	if _, dup := uniqueViolationOn(err); dup {
		return nil, domain.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert region: %w", err)
	}
	return &inserted, nil
}

// Update is a single compare-and-swap statement: the version predicate and
// the increment happen in the same UPDATE.
func (r *RegionRepo) Update(ctx context.Context, tenantID, id uuid.UUID, f domain.RegionFields, check domain.VersionCheck, now time.Time) (*domain.Region, error) {
	query := `
		UPDATE regions SET
			region_type = $3, grid_row = $4, grid_col = $5, row_span = $6, col_span = $7,
			min_width = $8, min_height = $9, is_collapsed = $10, is_locked = $11, is_hidden_mobile = $12,
			config = $13, widget_type = $14, widget_config = $15, display_order = $16,
			version = version + 1, updated_at = $17
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`
	args := []any{
		tenantID, id,
		string(f.RegionType), f.GridRow, f.GridCol, f.RowSpan, f.ColSpan,
		f.MinWidth, f.MinHeight, f.IsCollapsed, f.IsLocked, f.IsHiddenMobile,
		f.Config, f.WidgetType, f.WidgetConfig, f.DisplayOrder,
		now,
	}
	if expected, ok := check.Expected(); ok {
		args = append(args, expected)
		query += fmt.Sprintf(" AND version = $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query+` RETURNING `+regionColumns, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update region: %w", err)
	}

	updated, err := pgx.CollectExactlyOneRow(rows, scanRegion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRowsAffected
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update region: %w", err)
	}
	return &updated, nil
}

func (r *RegionRepo) SoftDelete(ctx context.Context, tenantID, id uuid.UUID, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE regions SET deleted_at = $3, updated_at = $3
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, tenantID, id, now)
	if err != nil {
		return fmt.Errorf("failed to soft-delete region: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RegionRepo) Undelete(ctx context.Context, tenantID, id uuid.UUID, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE regions SET deleted_at = NULL, updated_at = $3
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NOT NULL
	`, tenantID, id, now)
	if err != nil {
		return fmt.Errorf("failed to undelete region: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
