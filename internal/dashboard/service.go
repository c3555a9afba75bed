package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
	"github.com/pscheid92/gridlayout/internal/domain"
	"github.com/pscheid92/gridlayout/internal/grid"
	"github.com/pscheid92/gridlayout/internal/platform/correlation"
	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
)

// MaxRegionsPerLayout caps live regions per layout, which bounds the linear
// overlap scan.
const MaxRegionsPerLayout = 200

// CreateRegionInput describes a new region on a layout.
type CreateRegionInput struct {
	LayoutID uuid.UUID
	domain.RegionFields
}

// GrantInput describes an ACL grant on a region.
type GrantInput struct {
	RegionID      uuid.UUID
	PrincipalType domain.PrincipalType
	PrincipalID   string
	Permissions   domain.PermissionSet
}

// Service is the facade callers use to read and mutate layouts and regions.
type Service struct {
	regions domain.RegionRepository
	layouts domain.LayoutRepository
	acls    domain.ACLRepository
	events  domain.EventStore
	guard   *Guard
	clock   clockwork.Clock
	metrics *metrics.RegionMetrics
}

// NewService creates the dashboard facade. m may be nil.
func NewService(store domain.Store, clock clockwork.Clock, m *metrics.RegionMetrics) *Service {
	return &Service{
		regions: store.Regions(),
		layouts: store.Layouts(),
		acls:    store.ACLs(),
		events:  store.Events(),
		guard:   NewGuard(store.Regions()),
		clock:   clock,
		metrics: m,
	}
}

// Guard exposes the compare-and-swap writer for system restores.
func (s *Service) Guard() *Guard { return s.guard }

// CreateLayout creates an empty layout owned by user.
func (s *Service) CreateLayout(ctx context.Context, user domain.User, name string, isDefault bool) (*domain.Layout, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ValidationError("layout name is required")
	}

	now := s.clock.Now()
	layout, err := s.layouts.Insert(ctx, domain.Layout{
		ID:        uuid.New(),
		TenantID:  user.TenantID,
		UserID:    user.UserID,
		Name:      name,
		IsDefault: isDefault,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, apperrors.StoreError("insert layout", err)
	}

	s.appendEvent(ctx, user, domain.EventLayoutCreated, domain.EntityLayout, layout.ID, map[string]any{"name": layout.Name})
	return layout, nil
}

// GetLayout returns the layout if it belongs to the caller's tenant.
func (s *Service) GetLayout(ctx context.Context, user domain.User, layoutID uuid.UUID) (*domain.Layout, error) {
	layout, err := s.layouts.Get(ctx, user.TenantID, layoutID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NotFoundError("layout not found").WithField("layout_id", layoutID.String())
	}
	if err != nil {
		return nil, apperrors.StoreError("get layout", err)
	}
	return layout, nil
}

// CreateRegion validates bounds and overlap, then inserts the region at version 1.
func (s *Service) CreateRegion(ctx context.Context, user domain.User, in CreateRegionInput) (*domain.Region, error) {
	if err := validateFields(in.RegionFields); err != nil {
		s.recordMutation("create", err)
		return nil, err
	}
	if _, err := s.GetLayout(ctx, user, in.LayoutID); err != nil {
		s.recordMutation("create", err)
		return nil, err
	}
	count, err := s.countRegions(ctx, user.TenantID, in.LayoutID)
	if err != nil {
		s.recordMutation("create", err)
		return nil, err
	}
	if count >= MaxRegionsPerLayout {
		err := apperrors.ValidationError(fmt.Sprintf("layout already holds the maximum of %d regions", MaxRegionsPerLayout)).
			WithField("layout_id", in.LayoutID.String())
		s.recordMutation("create", err)
		return nil, err
	}
	if err := s.checkOverlap(ctx, user.TenantID, in.LayoutID, in.Rect(), uuid.Nil); err != nil {
		s.recordMutation("create", err)
		return nil, err
	}

	now := s.clock.Now()
	region, err := s.regions.Insert(ctx, domain.Region{
		ID:           uuid.New(),
		LayoutID:     in.LayoutID,
		TenantID:     user.TenantID,
		UserID:       user.UserID,
		RegionFields: in.RegionFields,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		err = apperrors.StoreError("insert region", err)
		s.recordMutation("create", err)
		return nil, err
	}

	s.recordMutation("create", nil)
	s.appendEvent(ctx, user, domain.EventRegionCreated, domain.EntityRegion, region.ID, map[string]any{
		"layout_id": region.LayoutID.String(),
		"grid_row":  region.GridRow,
		"grid_col":  region.GridCol,
	})
	return region, nil
}

// UpdateRegion applies patch to the region. check selects between a
// version-matched write and an unconditional one. A stale checked version is
// reported as a version conflict ahead of bounds and overlap errors.
func (s *Service) UpdateRegion(ctx context.Context, user domain.User, id uuid.UUID, patch domain.RegionPatch, check domain.VersionCheck) (*domain.Region, error) {
	current, err := s.GetRegion(ctx, user, id)
	if err != nil {
		s.recordMutation("update", err)
		return nil, err
	}

	if err := s.guard.Stale(id, current.Version, check); err != nil {
		s.recordMutation("update", err)
		return nil, err
	}

	fields := patch.ApplyTo(current.RegionFields)
	if err := validateFields(fields); err != nil {
		s.recordMutation("update", err)
		return nil, err
	}
	if fields.Rect() != current.Rect() {
		if err := s.checkOverlap(ctx, user.TenantID, current.LayoutID, fields.Rect(), id); err != nil {
			s.recordMutation("update", err)
			return nil, err
		}
	}

	updated, err := s.guard.Update(ctx, user.TenantID, id, fields, check, s.clock.Now())
	if err != nil {
		s.recordMutation("update", err)
		return nil, err
	}

	s.recordMutation("update", nil)
	s.appendEvent(ctx, user, domain.EventRegionUpdated, domain.EntityRegion, id, map[string]any{
		"layout_id": updated.LayoutID.String(),
		"version":   updated.Version,
		"checked":   check.IsChecked(),
	})
	return updated, nil
}

// DeleteRegion soft-deletes the region.
func (s *Service) DeleteRegion(ctx context.Context, user domain.User, id uuid.UUID) error {
	current, err := s.GetRegion(ctx, user, id)
	if err != nil {
		s.recordMutation("delete", err)
		return err
	}

	if err := s.regions.SoftDelete(ctx, user.TenantID, id, s.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = apperrors.NotFoundError("region not found").WithField("region_id", id.String())
		} else {
			err = apperrors.StoreError("delete region", err)
		}
		s.recordMutation("delete", err)
		return err
	}

	s.recordMutation("delete", nil)
	s.appendEvent(ctx, user, domain.EventRegionDeleted, domain.EntityRegion, id, map[string]any{
		"layout_id": current.LayoutID.String(),
	})
	return nil
}

// GetRegion returns a live region of the caller's tenant. A region of
// another tenant is reported exactly like a missing one.
func (s *Service) GetRegion(ctx context.Context, user domain.User, id uuid.UUID) (*domain.Region, error) {
	found, err := s.regions.Find(ctx, domain.RegionFilter{TenantID: user.TenantID, IDs: []uuid.UUID{id}})
	if err != nil {
		return nil, apperrors.StoreError("find region", err)
	}
	if len(found) == 0 {
		return nil, apperrors.NotFoundError("region not found").WithField("region_id", id.String())
	}
	return &found[0], nil
}

// ListRegions returns the live regions of a layout ordered by display order, then position.
func (s *Service) ListRegions(ctx context.Context, user domain.User, layoutID uuid.UUID) ([]domain.Region, error) {
	if _, err := s.GetLayout(ctx, user, layoutID); err != nil {
		return nil, err
	}
	regions, err := s.regions.Find(ctx, domain.RegionFilter{TenantID: user.TenantID, LayoutID: layoutID})
	if err != nil {
		return nil, apperrors.StoreError("find regions", err)
	}
	return regions, nil
}

// CountRegions returns the number of live regions on a layout.
func (s *Service) CountRegions(ctx context.Context, user domain.User, layoutID uuid.UUID) (int, error) {
	if _, err := s.GetLayout(ctx, user, layoutID); err != nil {
		return 0, err
	}
	return s.countRegions(ctx, user.TenantID, layoutID)
}

func (s *Service) countRegions(ctx context.Context, tenantID, layoutID uuid.UUID) (int, error) {
	n, err := s.regions.Count(ctx, domain.RegionFilter{TenantID: tenantID, LayoutID: layoutID})
	if err != nil {
		return 0, apperrors.StoreError("count regions", err)
	}
	return n, nil
}

// RestoreRegion brings a region back to the given snapshot: it re-inserts a
// missing row under the same ID, undeletes a soft-deleted one, and overwrites
// the fields unconditionally. Bounds and overlap are still enforced.
func (s *Service) RestoreRegion(ctx context.Context, user domain.User, snapshot domain.Region) (*domain.Region, error) {
	if err := validateFields(snapshot.RegionFields); err != nil {
		s.recordMutation("restore", err)
		return nil, err
	}
	if err := s.checkOverlap(ctx, user.TenantID, snapshot.LayoutID, snapshot.Rect(), snapshot.ID); err != nil {
		s.recordMutation("restore", err)
		return nil, err
	}

	restored, err := s.restore(ctx, user, snapshot)
	if err != nil {
		s.recordMutation("restore", err)
		return nil, err
	}

	s.recordMutation("restore", nil)
	s.appendEvent(ctx, user, domain.EventRegionRestored, domain.EntityRegion, restored.ID, map[string]any{
		"layout_id": restored.LayoutID.String(),
		"version":   restored.Version,
	})
	return restored, nil
}

func (s *Service) restore(ctx context.Context, user domain.User, snapshot domain.Region) (*domain.Region, error) {
	now := s.clock.Now()

	existing, err := s.regions.Find(ctx, domain.RegionFilter{
		TenantID:       user.TenantID,
		IDs:            []uuid.UUID{snapshot.ID},
		IncludeDeleted: true,
	})
	if err != nil {
		return nil, apperrors.StoreError("find region", err)
	}

	if len(existing) == 0 {
		row := snapshot
		row.TenantID = user.TenantID
		row.Version = 1
		row.CreatedAt = now
		row.UpdatedAt = now
		row.DeletedAt = nil
		if row.UserID == uuid.Nil {
			row.UserID = user.UserID
		}
		inserted, err := s.regions.Insert(ctx, row)
		if err != nil {
			return nil, apperrors.StoreError("insert region", err)
		}
		return inserted, nil
	}

	if existing[0].IsDeleted() {
		if err := s.regions.Undelete(ctx, user.TenantID, snapshot.ID, now); err != nil {
			return nil, apperrors.StoreError("undelete region", err)
		}
	}

	// System write: overwrites whatever concurrent edits happened since the snapshot.
	return s.guard.Update(ctx, user.TenantID, snapshot.ID, snapshot.RegionFields, domain.Unchecked(), now)
}

// GrantAccess upserts the permission set of a principal on a region.
func (s *Service) GrantAccess(ctx context.Context, user domain.User, in GrantInput) (*domain.RegionACL, error) {
	if !in.PrincipalType.Valid() {
		return nil, apperrors.ValidationError("principal_type must be one of user, role, team").
			WithField("principal_type", string(in.PrincipalType))
	}
	if strings.TrimSpace(in.PrincipalID) == "" {
		return nil, apperrors.ValidationError("principal_id is required")
	}
	if _, err := s.GetRegion(ctx, user, in.RegionID); err != nil {
		return nil, err
	}

	acl := domain.RegionACL{
		RegionID:      in.RegionID,
		TenantID:      user.TenantID,
		PrincipalType: in.PrincipalType,
		PrincipalID:   in.PrincipalID,
		Permissions:   in.Permissions,
	}
	if err := s.acls.Upsert(ctx, acl); err != nil {
		return nil, apperrors.StoreError("upsert region acl", err)
	}
	return &acl, nil
}

// ListAccess returns all grants on a region.
func (s *Service) ListAccess(ctx context.Context, user domain.User, regionID uuid.UUID) ([]domain.RegionACL, error) {
	if _, err := s.GetRegion(ctx, user, regionID); err != nil {
		return nil, err
	}
	acls, err := s.acls.ListByRegion(ctx, user.TenantID, regionID)
	if err != nil {
		return nil, apperrors.StoreError("list region acls", err)
	}
	return acls, nil
}

func (s *Service) checkOverlap(ctx context.Context, tenantID, layoutID uuid.UUID, candidate domain.Rect, exclude uuid.UUID) error {
	existing, err := s.regions.Find(ctx, domain.RegionFilter{TenantID: tenantID, LayoutID: layoutID})
	if err != nil {
		return apperrors.StoreError("find regions", err)
	}
	return grid.FindOverlap(candidate, existing, exclude)
}

func validateFields(f domain.RegionFields) error {
	if _, ok := domain.ParseRegionType(string(f.RegionType)); !ok {
		return apperrors.ValidationError("region_type is invalid").WithField("region_type", string(f.RegionType))
	}
	if err := grid.ValidateBounds(f.Rect()); err != nil {
		return err
	}
	if f.MinWidth < 0 || f.MinHeight < 0 {
		return apperrors.ValidationError("min_width and min_height must be >= 0")
	}
	if len(f.Config) > 0 && !json.Valid(f.Config) {
		return apperrors.ValidationError("config must be valid JSON")
	}
	if len(f.WidgetConfig) > 0 && !json.Valid(f.WidgetConfig) {
		return apperrors.ValidationError("widget_config must be valid JSON")
	}
	return nil
}

func (s *Service) recordMutation(op string, err error) {
	if s.metrics == nil {
		return
	}
	if err == nil {
		s.metrics.Mutations.WithLabelValues(op, "ok").Inc()
		return
	}
	s.metrics.Mutations.WithLabelValues(op, string(apperrors.TypeOf(err))).Inc()
	switch {
	case errors.Is(err, apperrors.ErrOverlapConflict):
		s.metrics.Conflicts.WithLabelValues("overlap").Inc()
	case errors.Is(err, apperrors.ErrVersionConflict):
		s.metrics.Conflicts.WithLabelValues("version").Inc()
	}
}

// appendEvent records a domain event. Failures are logged and never fail the
// mutation that produced the event.
func (s *Service) appendEvent(ctx context.Context, user domain.User, eventType, entityType string, entityID uuid.UUID, payload map[string]any) {
	event := domain.Event{
		ID:         uuid.New(),
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID.String(),
		TenantID:   user.TenantID,
		UserID:     user.UserID,
		Payload:    payload,
		Metadata:   correlation.Metadata(ctx),
		Timestamp:  s.clock.Now(),
	}
	if err := s.events.AppendEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "Failed to append domain event", "event_type", eventType, "entity_id", entityID.String(), "error", err)
	}
}

func (in CreateRegionInput) String() string {
	return fmt.Sprintf("%s@(%d,%d %dx%d)", in.RegionType, in.GridRow, in.GridCol, in.RowSpan, in.ColSpan)
}
