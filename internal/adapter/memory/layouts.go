package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
)

type layoutRepo struct {
	s *Store
}

func (r *layoutRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*domain.Layout, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.layouts[id]
	if !ok || l.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (r *layoutRepo) Insert(_ context.Context, layout domain.Layout) (*domain.Layout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if layout.ID == uuid.Nil {
		layout.ID = uuid.New()
	}
	if _, exists := r.s.layouts[layout.ID]; exists {
		return nil, domain.ErrAlreadyExists
	}
	r.s.layouts[layout.ID] = layout
	return &layout, nil
}
