package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/gridlayout/internal/domain"
)

const layoutColumns = `id, tenant_id, user_id, name, is_default, created_at, updated_at`

type LayoutRepo struct {
	pool *pgxpool.Pool
}

var _ domain.LayoutRepository = (*LayoutRepo)(nil)

func NewLayoutRepo(pool *pgxpool.Pool) *LayoutRepo {
	return &LayoutRepo{pool: pool}
}

func scanLayout(row pgx.Row) (*domain.Layout, error) {
	var l domain.Layout
	if err := row.Scan(&l.ID, &l.TenantID, &l.UserID, &l.Name, &l.IsDefault, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LayoutRepo) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Layout, error) {
	layout, err := scanLayout(r.pool.QueryRow(ctx,
		`SELECT `+layoutColumns+` FROM layouts WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get layout: %w", err)
	}
	return layout, nil
}

func (r *LayoutRepo) Insert(ctx context.Context, l domain.Layout) (*domain.Layout, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	layout, err := scanLayout(r.pool.QueryRow(ctx, `
		INSERT INTO layouts (`+layoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+layoutColumns,
		l.ID, l.TenantID, l.UserID, l.Name, l.IsDefault, l.CreatedAt, l.UpdatedAt))
	if _, dup := uniqueViolationOn(err); dup {
		return nil, domain.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert layout: %w", err)
	}
	return layout, nil
}
