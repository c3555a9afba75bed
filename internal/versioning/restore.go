package versioning

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
)

// restore makes the live region set of a layout equal to the snapshot. It is
// a full replace: live regions missing from the snapshot are soft-deleted,
// snapshot regions are updated, undeleted or re-inserted under their original
// IDs. Overlap is not re-checked; the snapshot was a consistent layout.
func (e *Engine) restore(ctx context.Context, user domain.User, layoutID uuid.UUID, snapshot domain.Snapshot) error {
	now := e.clock.Now()
	tenantID := user.TenantID

	live, err := e.regions.Find(ctx, domain.RegionFilter{TenantID: tenantID, LayoutID: layoutID})
	if err != nil {
		return apperrors.StoreError("find regions", err)
	}

	wanted := make(map[uuid.UUID]struct{}, len(snapshot.Regions))
	ids := make([]uuid.UUID, 0, len(snapshot.Regions))
	for _, r := range snapshot.Regions {
		wanted[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}

	for _, r := range live {
		if _, ok := wanted[r.ID]; ok {
			continue
		}
		if err := e.regions.SoftDelete(ctx, tenantID, r.ID, now); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return apperrors.StoreError("delete region", err)
		}
	}

	if len(ids) == 0 {
		return nil
	}

	existing, err := e.regions.Find(ctx, domain.RegionFilter{TenantID: tenantID, IDs: ids, IncludeDeleted: true})
	if err != nil {
		return apperrors.StoreError("find regions", err)
	}
	current := make(map[uuid.UUID]domain.Region, len(existing))
	for _, r := range existing {
		current[r.ID] = r
	}

	for _, r := range snapshot.Regions {
		row, ok := current[r.ID]
		if !ok {
			if _, err := e.regions.Insert(ctx, domain.Region{
				ID:           r.ID,
				LayoutID:     layoutID,
				TenantID:     tenantID,
				UserID:       r.UserID,
				RegionFields: r.RegionFields,
				Version:      1,
				CreatedAt:    now,
				UpdatedAt:    now,
			}); err != nil {
				return apperrors.StoreError("insert region", err)
			}
			continue
		}

		if row.IsDeleted() {
			if err := e.regions.Undelete(ctx, tenantID, r.ID, now); err != nil {
				return apperrors.StoreError("undelete region", err)
			}
		}
		// System write: the published payload wins over concurrent edits.
		if _, err := e.guard.Update(ctx, tenantID, r.ID, r.RegionFields, domain.Unchecked(), now); err != nil {
			return err
		}
	}
	return nil
}
