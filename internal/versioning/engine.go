// Package versioning snapshots layouts into append-only numbered versions and
// moves them through draft, preview and published.
//
// Version numbers are claimed by inserting under a (layout_id, version_number)
// uniqueness constraint; a collision re-reads the latest number and retries.
package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
	"github.com/pscheid92/gridlayout/internal/dashboard"
	"github.com/pscheid92/gridlayout/internal/domain"
	"github.com/pscheid92/gridlayout/internal/platform/correlation"
	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
	"github.com/pscheid92/gridlayout/internal/platform/retry"
)

const defaultCreateAttempts = 5

type Engine struct {
	layouts        domain.LayoutRepository
	regions        domain.RegionRepository
	versions       domain.VersionRepository
	events         domain.EventStore
	guard          *dashboard.Guard
	clock          clockwork.Clock
	createAttempts int
	metrics        *metrics.VersionMetrics
}

// NewEngine creates a versioning engine. createAttempts bounds the retries of
// a version-number collision; m may be nil.
func NewEngine(store domain.Store, clock clockwork.Clock, createAttempts int, m *metrics.VersionMetrics) *Engine {
	if createAttempts < 1 {
		createAttempts = defaultCreateAttempts
	}
	return &Engine{
		layouts:        store.Layouts(),
		regions:        store.Regions(),
		versions:       store.Versions(),
		events:         store.Events(),
		guard:          dashboard.NewGuard(store.Regions()),
		clock:          clock,
		createAttempts: createAttempts,
		metrics:        m,
	}
}

// CreateVersion snapshots the live regions of a layout into the next version.
// An empty status means draft. Creating straight into published demotes the
// current published version.
func (e *Engine) CreateVersion(ctx context.Context, user domain.User, layoutID uuid.UUID, status domain.VersionStatus, notes string) (*domain.LayoutVersion, error) {
	v, err := e.createVersion(ctx, user, layoutID, status, notes)
	e.record("create", err)
	return v, err
}

func (e *Engine) createVersion(ctx context.Context, user domain.User, layoutID uuid.UUID, status domain.VersionStatus, notes string) (*domain.LayoutVersion, error) {
	if status == "" {
		status = domain.VersionDraft
	}
	if !status.Valid() {
		return nil, apperrors.ValidationError("status must be one of draft, preview, published").WithField("status", string(status))
	}

	snapshot, err := e.snapshot(ctx, user.TenantID, layoutID)
	if err != nil {
		return nil, err
	}

	insertStatus := status
	if status == domain.VersionPublished {
		insertStatus = domain.VersionDraft
	}

	policy := retry.Policy{
		MaxAttempts: e.createAttempts,
		Clock:       e.clock,
		OnRetry: func(attempt int, _ error, _ time.Duration) {
			if e.metrics != nil {
				e.metrics.NumberConflicts.Inc()
			}
			slog.DebugContext(ctx, "Version number taken, retrying", "layout_id", layoutID.String(), "attempt", attempt)
		},
	}
	classify := func(err error) retry.Action {
		if errors.Is(err, domain.ErrDuplicateVersionNumber) {
			return retry.Retry
		}
		return retry.Stop
	}

	version, err := retry.Do(ctx, policy, classify, func() (*domain.LayoutVersion, error) {
		return e.insertNext(ctx, user, layoutID, snapshot, insertStatus, notes)
	})
	if err != nil {
		var structured *apperrors.Error
		if errors.As(err, &structured) {
			return nil, structured
		}
		if errors.Is(err, domain.ErrDuplicateVersionNumber) {
			return nil, apperrors.VersionConflictError("could not claim the next version number").
				WithField("layout_id", layoutID.String()).
				WithField("attempts", e.createAttempts)
		}
		return nil, apperrors.StoreError("insert layout version", err).WithField("layout_id", layoutID.String())
	}

	if status == domain.VersionPublished {
		if err := e.versions.Publish(ctx, user.TenantID, layoutID, version.ID); err != nil {
			return nil, apperrors.StoreError("publish layout version", err)
		}
		version.Status = domain.VersionPublished
	}

	e.appendEvent(ctx, user, domain.EventVersionCreated, version.ID, map[string]any{
		"layout_id":      layoutID.String(),
		"version_number": version.VersionNumber,
		"status":         string(version.Status),
	})
	return version, nil
}

func (e *Engine) insertNext(ctx context.Context, user domain.User, layoutID uuid.UUID, snapshot domain.Snapshot, status domain.VersionStatus, notes string) (*domain.LayoutVersion, error) {
	number := 1
	var diff *domain.VersionDiff

	latest, err := e.versions.Latest(ctx, user.TenantID, layoutID)
	switch {
	case err == nil:
		number = latest.VersionNumber + 1
		d := Diff(latest.Payload, snapshot)
		diff = &d
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, apperrors.StoreError("get latest layout version", err)
	}

	return e.versions.Insert(ctx, domain.LayoutVersion{
		ID:            uuid.New(),
		LayoutID:      layoutID,
		TenantID:      user.TenantID,
		VersionNumber: number,
		Status:        status,
		Payload:       snapshot,
		Diff:          diff,
		CreatedBy:     user.UserID,
		CreatedAt:     e.clock.Now(),
		Notes:         notes,
	})
}

func (e *Engine) snapshot(ctx context.Context, tenantID, layoutID uuid.UUID) (domain.Snapshot, error) {
	layout, err := e.layouts.Get(ctx, tenantID, layoutID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Snapshot{}, apperrors.NotFoundError("layout not found").WithField("layout_id", layoutID.String())
	}
	if err != nil {
		return domain.Snapshot{}, apperrors.StoreError("get layout", err)
	}

	regions, err := e.regions.Find(ctx, domain.RegionFilter{TenantID: tenantID, LayoutID: layoutID})
	if err != nil {
		return domain.Snapshot{}, apperrors.StoreError("find regions", err)
	}
	if regions == nil {
		regions = []domain.Region{}
	}
	return domain.Snapshot{Layout: *layout, Regions: regions}, nil
}

// PromoteVersion moves a draft version to preview.
func (e *Engine) PromoteVersion(ctx context.Context, user domain.User, layoutID, versionID uuid.UUID) (*domain.LayoutVersion, error) {
	v, err := e.promote(ctx, user, layoutID, versionID)
	e.record("promote", err)
	return v, err
}

func (e *Engine) promote(ctx context.Context, user domain.User, layoutID, versionID uuid.UUID) (*domain.LayoutVersion, error) {
	v, err := e.getVersion(ctx, user.TenantID, versionID)
	if err != nil {
		return nil, err
	}
	if v.LayoutID != layoutID {
		return nil, versionNotFound(versionID)
	}
	if !v.Status.CanAdvanceTo(domain.VersionPreview) {
		return nil, apperrors.ValidationError(fmt.Sprintf("cannot move version from %s to preview", v.Status))
	}

	err = e.versions.UpdateStatus(ctx, user.TenantID, versionID, v.Status, domain.VersionPreview)
	switch {
	case errors.Is(err, domain.ErrNoRowsAffected):
		return nil, apperrors.VersionConflictError("version status changed concurrently").
			WithField("version_id", versionID.String()).
			WithField("status", string(v.Status))
	case errors.Is(err, domain.ErrNotFound):
		return nil, versionNotFound(versionID)
	case err != nil:
		return nil, apperrors.StoreError("update layout version status", err)
	}
	v.Status = domain.VersionPreview

	e.appendEvent(ctx, user, domain.EventVersionPromoted, versionID, map[string]any{
		"layout_id":      layoutID.String(),
		"version_number": v.VersionNumber,
	})
	return v, nil
}

// PublishVersion replaces the layout's live regions with the version's payload,
// then marks the version published and demotes the previously published one to
// preview. Live regions absent from the payload are soft-deleted.
func (e *Engine) PublishVersion(ctx context.Context, user domain.User, layoutID, versionID uuid.UUID) (*domain.LayoutVersion, error) {
	v, err := e.publish(ctx, user, layoutID, versionID)
	e.record("publish", err)
	return v, err
}

func (e *Engine) publish(ctx context.Context, user domain.User, layoutID, versionID uuid.UUID) (*domain.LayoutVersion, error) {
	v, err := e.getVersion(ctx, user.TenantID, versionID)
	if err != nil {
		return nil, err
	}
	if v.LayoutID != layoutID {
		return nil, versionNotFound(versionID)
	}
	if !v.Status.CanAdvanceTo(domain.VersionPublished) {
		return nil, apperrors.ValidationError("version is already published").WithField("version_id", versionID.String())
	}

	// Regions first: a failed restore leaves the status untouched.
	if err := e.restore(ctx, user, layoutID, v.Payload); err != nil {
		return nil, err
	}

	if err := e.versions.Publish(ctx, user.TenantID, layoutID, versionID); err != nil {
		if errors.Is(err, domain.ErrAlreadyPublished) {
			return nil, apperrors.ValidationError("version is already published").WithField("version_id", versionID.String())
		}
		slog.ErrorContext(ctx, "Layout regions restored but version not marked published",
			"layout_id", layoutID.String(), "version_id", versionID.String(), "error", err)
		return nil, apperrors.StoreError("publish layout version", err)
	}
	v.Status = domain.VersionPublished

	e.appendEvent(ctx, user, domain.EventVersionPublished, versionID, map[string]any{
		"layout_id":      layoutID.String(),
		"version_number": v.VersionNumber,
	})
	return v, nil
}

// RevertToVersion restores the layout to the version's payload and records
// the result as a new version, so reverts stay in the history.
func (e *Engine) RevertToVersion(ctx context.Context, user domain.User, layoutID, versionID uuid.UUID) (*domain.LayoutVersion, error) {
	v, err := e.revert(ctx, user, layoutID, versionID)
	e.record("revert", err)
	return v, err
}

func (e *Engine) revert(ctx context.Context, user domain.User, layoutID, versionID uuid.UUID) (*domain.LayoutVersion, error) {
	target, err := e.getVersion(ctx, user.TenantID, versionID)
	if err != nil {
		return nil, err
	}
	if target.LayoutID != layoutID {
		return nil, versionNotFound(versionID)
	}

	if err := e.restore(ctx, user, layoutID, target.Payload); err != nil {
		return nil, err
	}

	created, err := e.createVersion(ctx, user, layoutID, domain.VersionDraft, fmt.Sprintf("Reverted to version %d", target.VersionNumber))
	if err != nil {
		return nil, err
	}

	e.appendEvent(ctx, user, domain.EventVersionReverted, created.ID, map[string]any{
		"layout_id":           layoutID.String(),
		"reverted_to":         target.VersionNumber,
		"new_version_number":  created.VersionNumber,
		"reverted_version_id": target.ID.String(),
	})
	return created, nil
}

// GetVersions lists a layout's versions, newest first.
func (e *Engine) GetVersions(ctx context.Context, user domain.User, layoutID uuid.UUID) ([]domain.LayoutVersion, error) {
	if _, err := e.layouts.Get(ctx, user.TenantID, layoutID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.NotFoundError("layout not found").WithField("layout_id", layoutID.String())
		}
		return nil, apperrors.StoreError("get layout", err)
	}
	versions, err := e.versions.List(ctx, user.TenantID, layoutID)
	if err != nil {
		return nil, apperrors.StoreError("list layout versions", err)
	}
	return versions, nil
}

func (e *Engine) GetVersion(ctx context.Context, user domain.User, versionID uuid.UUID) (*domain.LayoutVersion, error) {
	return e.getVersion(ctx, user.TenantID, versionID)
}

// GetVersionDiff compares two arbitrary versions, from a to b.
func (e *Engine) GetVersionDiff(ctx context.Context, user domain.User, versionA, versionB uuid.UUID) (*domain.VersionDiff, error) {
	a, err := e.getVersion(ctx, user.TenantID, versionA)
	if err != nil {
		return nil, err
	}
	b, err := e.getVersion(ctx, user.TenantID, versionB)
	if err != nil {
		return nil, err
	}
	d := Diff(a.Payload, b.Payload)
	return &d, nil
}

func (e *Engine) getVersion(ctx context.Context, tenantID, versionID uuid.UUID) (*domain.LayoutVersion, error) {
	v, err := e.versions.Get(ctx, tenantID, versionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, versionNotFound(versionID)
	}
	if err != nil {
		return nil, apperrors.StoreError("get layout version", err)
	}
	return v, nil
}

func versionNotFound(id uuid.UUID) error {
	return apperrors.NotFoundError("layout version not found").WithField("version_id", id.String())
}

func (e *Engine) record(op string, err error) {
	if e.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(apperrors.TypeOf(err))
	}
	e.metrics.Operations.WithLabelValues(op, result).Inc()
}

func (e *Engine) appendEvent(ctx context.Context, user domain.User, eventType string, versionID uuid.UUID, payload map[string]any) {
	event := domain.Event{
		ID:         uuid.New(),
		EventType:  eventType,
		EntityType: domain.EntityVersion,
		EntityID:   versionID.String(),
		TenantID:   user.TenantID,
		UserID:     user.UserID,
		Payload:    payload,
		Metadata:   correlation.Metadata(ctx),
		Timestamp:  e.clock.Now(),
	}
	if err := e.events.AppendEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "Failed to append version event", "event_type", eventType, "version_id", versionID.String(), "error", err)
	}
}
