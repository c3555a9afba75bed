package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
)

type versionRepo struct {
	s *Store
}

func (r *versionRepo) Insert(_ context.Context, v domain.LayoutVersion) (*domain.LayoutVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.versions {
		if existing.LayoutID == v.LayoutID && existing.VersionNumber == v.VersionNumber {
			return nil, domain.ErrDuplicateVersionNumber
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	r.s.versions[v.ID] = cloneVersion(v)
	out := cloneVersion(v)
	return &out, nil
}

func (r *versionRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*domain.LayoutVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.versions[id]
	if !ok || v.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	out := cloneVersion(v)
	return &out, nil
}

func (r *versionRepo) list(tenantID, layoutID uuid.UUID) []domain.LayoutVersion {
	var out []domain.LayoutVersion
	for _, v := range r.s.versions {
		if v.TenantID == tenantID && v.LayoutID == layoutID {
			out = append(out, cloneVersion(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out
}

func (r *versionRepo) List(_ context.Context, tenantID, layoutID uuid.UUID) ([]domain.LayoutVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.list(tenantID, layoutID), nil
}

func (r *versionRepo) Latest(_ context.Context, tenantID, layoutID uuid.UUID) (*domain.LayoutVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	versions := r.list(tenantID, layoutID)
	if len(versions) == 0 {
		return nil, domain.ErrNotFound
	}
	return &versions[0], nil
}

func (r *versionRepo) UpdateStatus(_ context.Context, tenantID, id uuid.UUID, from, to domain.VersionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.versions[id]
	if !ok || v.TenantID != tenantID {
		return domain.ErrNotFound
	}
	if v.Status != from {
		return domain.ErrNoRowsAffected
	}
	v.Status = to
	r.s.versions[id] = v
	return nil
}

func (r *versionRepo) Publish(_ context.Context, tenantID, layoutID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	target, ok := r.s.versions[id]
	if !ok || target.TenantID != tenantID || target.LayoutID != layoutID {
		return domain.ErrNotFound
	}
	if target.Status == domain.VersionPublished {
		return domain.ErrAlreadyPublished
	}
	for vid, v := range r.s.versions {
		if vid != id && v.LayoutID == layoutID && v.Status == domain.VersionPublished {
			v.Status = domain.VersionPreview
			r.s.versions[vid] = v
		}
	}
	target.Status = domain.VersionPublished
	r.s.versions[id] = target
	return nil
}
