package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/dashboard"
	"github.com/pscheid92/gridlayout/internal/domain"
	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
)

// RegionService is the part of the dashboard facade bulk sagas drive.
type RegionService interface {
	CreateRegion(ctx context.Context, user domain.User, in dashboard.CreateRegionInput) (*domain.Region, error)
	UpdateRegion(ctx context.Context, user domain.User, id uuid.UUID, patch domain.RegionPatch, check domain.VersionCheck) (*domain.Region, error)
	DeleteRegion(ctx context.Context, user domain.User, id uuid.UUID) error
	GetRegion(ctx context.Context, user domain.User, id uuid.UUID) (*domain.Region, error)
	RestoreRegion(ctx context.Context, user domain.User, snapshot domain.Region) (*domain.Region, error)
}

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// BulkOperation is one requested change of a bulk-region saga.
// Create uses Fields; update uses RegionID, Patch and optionally
// ExpectedVersion (0 means the version read right before the write);
// delete uses RegionID.
type BulkOperation struct {
	Kind            OpKind
	RegionID        uuid.UUID
	Fields          domain.RegionFields
	Patch           domain.RegionPatch
	ExpectedVersion int
}

// CreateBulkRegionSaga builds a saga with one step per operation. Operations
// are only shape-checked here; bounds, overlap and versions are enforced when
// the steps run.
func (o *Orchestrator) CreateBulkRegionSaga(user domain.User, layoutID uuid.UUID, ops []BulkOperation) (*Saga, error) {
	if len(ops) == 0 {
		return nil, apperrors.ValidationError("bulk operation list is empty")
	}

	steps := make([]Step, 0, len(ops))
	for i, op := range ops {
		id := fmt.Sprintf("%d-%s", i+1, op.Kind)
		switch op.Kind {
		case OpCreate:
			steps = append(steps, o.createStep(id, user, layoutID, op))
		case OpUpdate:
			if op.RegionID == uuid.Nil {
				return nil, apperrors.ValidationError("update operation requires a region id").WithField("index", i)
			}
			steps = append(steps, o.updateStep(id, user, layoutID, op))
		case OpDelete:
			if op.RegionID == uuid.Nil {
				return nil, apperrors.ValidationError("delete operation requires a region id").WithField("index", i)
			}
			steps = append(steps, o.deleteStep(id, user, layoutID, op))
		default:
			return nil, apperrors.ValidationError("unknown bulk operation").WithField("index", i).WithField("kind", string(op.Kind))
		}
	}

	return New(user.UserID, user.TenantID, steps...), nil
}

func (o *Orchestrator) createStep(id string, user domain.User, layoutID uuid.UUID, op BulkOperation) Step {
	in := dashboard.CreateRegionInput{LayoutID: layoutID, RegionFields: op.Fields}

	return NewStep(id, "create region "+in.String(),
		func(ctx context.Context) (any, error) {
			region, err := o.regions.CreateRegion(ctx, user, in)
			if err != nil {
				return nil, err
			}
			return region.ID, nil
		},
		func(ctx context.Context, data any) error {
			regionID, ok := data.(uuid.UUID)
			if !ok {
				return fmt.Errorf("unexpected rollback data %T", data)
			}
			err := o.regions.DeleteRegion(ctx, user, regionID)
			if errors.Is(err, apperrors.ErrNotFound) {
				slog.WarnContext(ctx, "Created region already gone during rollback", "region_id", regionID.String())
				return nil
			}
			return err
		},
	)
}

func (o *Orchestrator) updateStep(id string, user domain.User, layoutID uuid.UUID, op BulkOperation) Step {
	return NewStep(id, "update region "+op.RegionID.String(),
		func(ctx context.Context) (any, error) {
			before, err := o.regionInLayout(ctx, user, layoutID, op.RegionID)
			if err != nil {
				return nil, err
			}
			expected := op.ExpectedVersion
			if expected == 0 {
				expected = before.Version
			}
			if _, err := o.regions.UpdateRegion(ctx, user, op.RegionID, op.Patch, domain.Checked(expected)); err != nil {
				return nil, err
			}
			return *before, nil
		},
		o.restoreSnapshot(user),
	)
}

// deleteStep is not retryable: a delete that may have been applied cannot be
// blindly repeated.
func (o *Orchestrator) deleteStep(id string, user domain.User, layoutID uuid.UUID, op BulkOperation) Step {
	step := NewStep(id, "delete region "+op.RegionID.String(),
		func(ctx context.Context) (any, error) {
			before, err := o.regionInLayout(ctx, user, layoutID, op.RegionID)
			if err != nil {
				return nil, err
			}
			if err := o.regions.DeleteRegion(ctx, user, op.RegionID); err != nil {
				return nil, err
			}
			return *before, nil
		},
		o.restoreSnapshot(user),
	)
	step.Retryable = false
	return step
}

func (o *Orchestrator) restoreSnapshot(user domain.User) func(ctx context.Context, data any) error {
	return func(ctx context.Context, data any) error {
		snapshot, ok := data.(domain.Region)
		if !ok {
			return fmt.Errorf("unexpected rollback data %T", data)
		}
		_, err := o.regions.RestoreRegion(ctx, user, snapshot)
		return err
	}
}

func (o *Orchestrator) regionInLayout(ctx context.Context, user domain.User, layoutID, regionID uuid.UUID) (*domain.Region, error) {
	region, err := o.regions.GetRegion(ctx, user, regionID)
	if err != nil {
		return nil, err
	}
	if region.LayoutID != layoutID {
		return nil, apperrors.NotFoundError("region not found").WithField("region_id", regionID.String())
	}
	return region, nil
}
