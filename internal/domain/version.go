package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type VersionStatus string

const (
	VersionDraft     VersionStatus = "draft"
	VersionPreview   VersionStatus = "preview"
	VersionPublished VersionStatus = "published"
)

func (s VersionStatus) rank() int {
	switch s {
	case VersionDraft:
		return 0
	case VersionPreview:
		return 1
	case VersionPublished:
		return 2
	default:
		return -1
	}
}

func (s VersionStatus) Valid() bool { return s.rank() >= 0 }

// CanAdvanceTo reports whether next is a forward transition from s.
func (s VersionStatus) CanAdvanceTo(next VersionStatus) bool {
	return s.Valid() && next.Valid() && next.rank() > s.rank()
}

// Snapshot is the immutable payload of a layout version.
type Snapshot struct {
	Layout  Layout   `json:"layout"`
	Regions []Region `json:"regions"`
}

// RegionChange lists the non-volatile fields that differ for one region.
type RegionChange struct {
	RegionID uuid.UUID `json:"region_id"`
	Fields   []string  `json:"fields"`
}

// VersionDiff is the structural delta between two snapshots.
type VersionDiff struct {
	Added    []uuid.UUID    `json:"added"`
	Removed  []uuid.UUID    `json:"removed"`
	Modified []RegionChange `json:"modified"`
}

func (d VersionDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

type LayoutVersion struct {
	ID            uuid.UUID     `json:"id"`
	LayoutID      uuid.UUID     `json:"layout_id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	VersionNumber int           `json:"version_number"`
	Status        VersionStatus `json:"status"`
	Payload       Snapshot      `json:"payload"`
	Diff          *VersionDiff  `json:"diff,omitempty"`
	CreatedBy     uuid.UUID     `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	Notes         string        `json:"notes,omitempty"`
}

// VersionRepository abstracts layout version persistence.
//
// Insert must fail with ErrDuplicateVersionNumber when (layout_id, version_number)
// is taken. UpdateStatus moves a version from one status to another and fails
// with ErrNoRowsAffected when the stored status is no longer from. Publish sets
// the target to Published and demotes any other Published version of the same
// layout to Preview in one atomic step.
type VersionRepository interface {
	Insert(ctx context.Context, v LayoutVersion) (*LayoutVersion, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*LayoutVersion, error)
	List(ctx context.Context, tenantID, layoutID uuid.UUID) ([]LayoutVersion, error)
	Latest(ctx context.Context, tenantID, layoutID uuid.UUID) (*LayoutVersion, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to VersionStatus) error
	Publish(ctx context.Context, tenantID, layoutID, id uuid.UUID) error
}
