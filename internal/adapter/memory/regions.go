package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
)

type regionRepo struct {
	s *Store
}

func matches(r domain.Region, f domain.RegionFilter) bool {
	if r.TenantID != f.TenantID {
		return false
	}
	if f.LayoutID != uuid.Nil && r.LayoutID != f.LayoutID {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID) {
		return false
	}
	return f.IncludeDeleted || r.DeletedAt == nil
}

func (r *regionRepo) Find(_ context.Context, f domain.RegionFilter) ([]domain.Region, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Region
	for _, region := range r.s.regions {
		if matches(region, f) {
			out = append(out, cloneRegion(region))
		}
	}
	sortRegions(out)
	return out, nil
}

func (r *regionRepo) Count(_ context.Context, f domain.RegionFilter) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, region := range r.s.regions {
		if matches(region, f) {
			n++
		}
	}
	return n, nil
}

func (r *regionRepo) Insert(_ context.Context, region domain.Region) (*domain.Region, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if region.ID == uuid.Nil {
		region.ID = uuid.New()
	}
	if _, exists := r.s.regions[region.ID]; exists {
		return nil, domain.ErrAlreadyExists
	}
	if region.Version == 0 {
		region.Version = 1
	}
	r.s.regions[region.ID] = cloneRegion(region)
	out := cloneRegion(region)
	return &out, nil
}

func (r *regionRepo) Update(_ context.Context, tenantID, id uuid.UUID, fields domain.RegionFields, check domain.VersionCheck, now time.Time) (*domain.Region, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.regions[id]
	if !ok || current.TenantID != tenantID || current.DeletedAt != nil {
		return nil, domain.ErrNoRowsAffected
	}
	if expected, checked := check.Expected(); checked && current.Version != expected {
		return nil, domain.ErrNoRowsAffected
	}

	current.RegionFields = fields
	current.Version++
	current.UpdatedAt = now
	r.s.regions[id] = cloneRegion(current)

	out := cloneRegion(current)
	return &out, nil
}

func (r *regionRepo) SoftDelete(_ context.Context, tenantID, id uuid.UUID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.regions[id]
	if !ok || current.TenantID != tenantID || current.DeletedAt != nil {
		return domain.ErrNotFound
	}
	current.DeletedAt = &now
	current.UpdatedAt = now
	r.s.regions[id] = current
	return nil
}

func (r *regionRepo) Undelete(_ context.Context, tenantID, id uuid.UUID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.regions[id]
	if !ok || current.TenantID != tenantID || current.DeletedAt == nil {
		return domain.ErrNotFound
	}
	current.DeletedAt = nil
	current.UpdatedAt = now
	r.s.regions[id] = current
	return nil
}
