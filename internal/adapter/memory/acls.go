package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
)

type aclRepo struct {
	s *Store
}

func (r *aclRepo) Upsert(_ context.Context, acl domain.RegionACL) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.acls[aclKey{RegionID: acl.RegionID, PrincipalType: acl.PrincipalType, PrincipalID: acl.PrincipalID}] = acl
	return nil
}

func (r *aclRepo) ListByRegion(_ context.Context, tenantID, regionID uuid.UUID) ([]domain.RegionACL, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.RegionACL
	for _, acl := range r.s.acls {
		if acl.TenantID == tenantID && acl.RegionID == regionID {
			out = append(out, acl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PrincipalType != out[j].PrincipalType {
			return out[i].PrincipalType < out[j].PrincipalType
		}
		return out[i].PrincipalID < out[j].PrincipalID
	})
	return out, nil
}
