package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/gridlayout/internal/domain"
)

var (
	tenantA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	tenantB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	t0      = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

func seedRegion(t *testing.T, s *Store, layoutID uuid.UUID, row, col int) domain.Region {
	t.Helper()
	r, err := s.Regions().Insert(context.Background(), domain.Region{
		LayoutID: layoutID,
		TenantID: tenantA,
		RegionFields: domain.RegionFields{
			RegionType: domain.RegionTypeWidget,
			GridRow:    row,
			GridCol:    col,
			RowSpan:    1,
			ColSpan:    1,
			Config:     json.RawMessage(`{"title":"x"}`),
		},
		CreatedAt: t0,
		UpdatedAt: t0,
	})
	require.NoError(t, err)
	return *r
}

func TestRegions_CheckedUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := seedRegion(t, s, uuid.New(), 0, 0)
	require.Equal(t, 1, r.Version)

	fields := r.RegionFields
	fields.GridCol = 4

	updated, err := s.Regions().Update(ctx, tenantA, r.ID, fields, domain.Checked(1), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, 4, updated.GridCol)

	fields.GridCol = 8
	_, err = s.Regions().Update(ctx, tenantA, r.ID, fields, domain.Checked(1), t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, domain.ErrNoRowsAffected)

	stored, err := s.Regions().Find(ctx, domain.RegionFilter{TenantID: tenantA, IDs: []uuid.UUID{r.ID}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 2, stored[0].Version)
	assert.Equal(t, 4, stored[0].GridCol)
}

func TestRegions_UncheckedUpdateIncrements(t *testing.T) {
	s := NewStore()
	r := seedRegion(t, s, uuid.New(), 0, 0)

	updated, err := s.Regions().Update(context.Background(), tenantA, r.ID, r.RegionFields, domain.Unchecked(), t0)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
}

func TestRegions_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := seedRegion(t, s, uuid.New(), 0, 0)

	found, err := s.Regions().Find(ctx, domain.RegionFilter{TenantID: tenantB})
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = s.Regions().Update(ctx, tenantB, r.ID, r.RegionFields, domain.Unchecked(), t0)
	assert.ErrorIs(t, err, domain.ErrNoRowsAffected)
	assert.ErrorIs(t, s.Regions().SoftDelete(ctx, tenantB, r.ID, t0), domain.ErrNotFound)
}

func TestRegions_SoftDeleteAndUndelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	layoutID := uuid.New()
	r := seedRegion(t, s, layoutID, 0, 0)
	seedRegion(t, s, layoutID, 0, 1)

	require.NoError(t, s.Regions().SoftDelete(ctx, tenantA, r.ID, t0))
	assert.ErrorIs(t, s.Regions().SoftDelete(ctx, tenantA, r.ID, t0), domain.ErrNotFound)

	live, err := s.Regions().Count(ctx, domain.RegionFilter{TenantID: tenantA, LayoutID: layoutID})
	require.NoError(t, err)
	assert.Equal(t, 1, live)

	all, err := s.Regions().Count(ctx, domain.RegionFilter{TenantID: tenantA, LayoutID: layoutID, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 2, all)

	_, err = s.Regions().Update(ctx, tenantA, r.ID, r.RegionFields, domain.Unchecked(), t0)
	assert.ErrorIs(t, err, domain.ErrNoRowsAffected)

	require.NoError(t, s.Regions().Undelete(ctx, tenantA, r.ID, t0))
	live, err = s.Regions().Count(ctx, domain.RegionFilter{TenantID: tenantA, LayoutID: layoutID})
	require.NoError(t, err)
	assert.Equal(t, 2, live)
}

func TestRegions_InsertKeepsIDAndRejectsDuplicate(t *testing.T) {
	s := NewStore()
	r := seedRegion(t, s, uuid.New(), 0, 0)

	_, err := s.Regions().Insert(context.Background(), r)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestRegions_FindReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := seedRegion(t, s, uuid.New(), 0, 0)

	found, err := s.Regions().Find(ctx, domain.RegionFilter{TenantID: tenantA})
	require.NoError(t, err)
	found[0].Config[2] = 'X'

	again, err := s.Regions().Find(ctx, domain.RegionFilter{TenantID: tenantA, IDs: []uuid.UUID{r.ID}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"x"}`, string(again[0].Config))
}

func TestVersions_DuplicateNumberRejected(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	layoutID := uuid.New()

	_, err := s.Versions().Insert(ctx, domain.LayoutVersion{LayoutID: layoutID, TenantID: tenantA, VersionNumber: 1, Status: domain.VersionDraft})
	require.NoError(t, err)

	_, err = s.Versions().Insert(ctx, domain.LayoutVersion{LayoutID: layoutID, TenantID: tenantA, VersionNumber: 1, Status: domain.VersionDraft})
	assert.ErrorIs(t, err, domain.ErrDuplicateVersionNumber)
}

func TestVersions_PublishDemotesPrevious(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	layoutID := uuid.New()

	v1, err := s.Versions().Insert(ctx, domain.LayoutVersion{LayoutID: layoutID, TenantID: tenantA, VersionNumber: 1, Status: domain.VersionDraft})
	require.NoError(t, err)
	v2, err := s.Versions().Insert(ctx, domain.LayoutVersion{LayoutID: layoutID, TenantID: tenantA, VersionNumber: 2, Status: domain.VersionDraft})
	require.NoError(t, err)

	require.NoError(t, s.Versions().Publish(ctx, tenantA, layoutID, v1.ID))
	require.NoError(t, s.Versions().Publish(ctx, tenantA, layoutID, v2.ID))

	list, err := s.Versions().List(ctx, tenantA, layoutID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].VersionNumber)
	assert.Equal(t, domain.VersionPublished, list[0].Status)
	assert.Equal(t, domain.VersionPreview, list[1].Status)

	latest, err := s.Versions().Latest(ctx, tenantA, layoutID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, latest.ID)

	assert.ErrorIs(t, s.Versions().Publish(ctx, tenantB, layoutID, v1.ID), domain.ErrNotFound)
}

func TestVersions_UpdateStatusComparesCurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	layoutID := uuid.New()

	v, err := s.Versions().Insert(ctx, domain.LayoutVersion{LayoutID: layoutID, TenantID: tenantA, VersionNumber: 1, Status: domain.VersionDraft})
	require.NoError(t, err)
	require.NoError(t, s.Versions().Publish(ctx, tenantA, layoutID, v.ID))

	err = s.Versions().UpdateStatus(ctx, tenantA, v.ID, domain.VersionDraft, domain.VersionPreview)
	assert.ErrorIs(t, err, domain.ErrNoRowsAffected)
	assert.ErrorIs(t, s.Versions().UpdateStatus(ctx, tenantB, v.ID, domain.VersionPublished, domain.VersionPreview), domain.ErrNotFound)

	got, err := s.Versions().Get(ctx, tenantA, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VersionPublished, got.Status)

	require.NoError(t, s.Versions().UpdateStatus(ctx, tenantA, v.ID, domain.VersionPublished, domain.VersionPreview))
}

func TestPresence_StaleAndEditing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	regionID := uuid.New()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, s.Presence().Upsert(ctx, domain.PresenceRecord{RegionID: regionID, TenantID: tenantA, UserID: alice, SessionID: "s1", IsEditing: true, LastSeen: t0}))
	require.NoError(t, s.Presence().Upsert(ctx, domain.PresenceRecord{RegionID: regionID, TenantID: tenantA, UserID: bob, SessionID: "s2", LastSeen: t0.Add(-10 * time.Minute)}))

	editing, err := s.Presence().ListEditing(ctx, tenantA, []uuid.UUID{regionID}, t0.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, editing, 1)
	assert.Equal(t, alice, editing[0].UserID)

	require.NoError(t, s.Presence().DeleteStale(ctx, tenantA, regionID, t0.Add(-5*time.Minute)))
	rows, err := s.Presence().ListByRegion(ctx, tenantA, regionID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, alice, rows[0].UserID)

	require.NoError(t, s.Presence().SetEditing(ctx, tenantA, regionID, alice, "s1", false, t0))
	editing, err = s.Presence().ListEditing(ctx, tenantA, []uuid.UUID{regionID}, t0.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, editing)
}

func TestACLs_UpsertReplacesPermissions(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	regionID := uuid.New()

	acl := domain.RegionACL{RegionID: regionID, TenantID: tenantA, PrincipalType: domain.PrincipalTeam, PrincipalID: "design", Permissions: domain.PermissionSet{Read: true}}
	require.NoError(t, s.ACLs().Upsert(ctx, acl))
	acl.Permissions.Edit = true
	require.NoError(t, s.ACLs().Upsert(ctx, acl))

	grants, err := s.ACLs().ListByRegion(ctx, tenantA, regionID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.True(t, grants[0].Permissions.Allows(domain.PermissionEdit))
	assert.False(t, grants[0].Permissions.Allows(domain.PermissionShare))
}

func TestEvents_AppendAssignsID(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Events().AppendEvent(context.Background(), domain.Event{EventType: domain.EventRegionCreated, TenantID: tenantA}))

	log := s.EventLog()
	require.Len(t, log, 1)
	assert.NotEqual(t, uuid.Nil, log[0].ID)
}
