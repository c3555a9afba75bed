package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
)

// Guard performs version-matched region writes. The version comparison
// happens inside the single store update, never as a separate read.
type Guard struct {
	regions domain.RegionRepository
}

func NewGuard(regions domain.RegionRepository) *Guard {
	return &Guard{regions: regions}
}

// Update writes fields to the live region. With Checked(n) the write only
// applies when the stored version is n and the result has version n+1.
// Callers must have confirmed the region exists: zero affected rows on a
// checked write is reported as a version conflict.
func (g *Guard) Update(ctx context.Context, tenantID, id uuid.UUID, fields domain.RegionFields, check domain.VersionCheck, now time.Time) (*domain.Region, error) {
	updated, err := g.regions.Update(ctx, tenantID, id, fields, check, now)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, domain.ErrNoRowsAffected) {
		return nil, apperrors.StoreError("update region", fmt.Errorf("update region %s: %w", id, err))
	}

	if expected, checked := check.Expected(); checked {
		return nil, versionConflict(id, expected)
	}
	return nil, apperrors.NotFoundError("region not found").WithField("region_id", id.String())
}

// Stale reports a version conflict when a checked write was based on a version
// other than current. It lets callers fail fast before validating the patch;
// the store update still performs the authoritative comparison.
func (g *Guard) Stale(id uuid.UUID, current int, check domain.VersionCheck) error {
	if expected, checked := check.Expected(); checked && expected != current {
		return versionConflict(id, expected)
	}
	return nil
}

func versionConflict(id uuid.UUID, expected int) error {
	return apperrors.VersionConflictError(
		fmt.Sprintf("region was modified concurrently (expected version %d)", expected)).
		WithField("region_id", id.String()).
		WithField("expected_version", expected)
}
