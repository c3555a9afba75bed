package saga

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/gridlayout/internal/adapter/memory"
	"github.com/pscheid92/gridlayout/internal/dashboard"
	"github.com/pscheid92/gridlayout/internal/domain"
	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
)

type bulkFixture struct {
	orch   *Orchestrator
	svc    *dashboard.Service
	store  *memory.Store
	layout *domain.Layout
}

func newBulkFixture(t *testing.T) *bulkFixture {
	t.Helper()
	store := memory.NewStore()
	clock := clockwork.NewFakeClock()
	svc := dashboard.NewService(store, clock, nil)
	orch := NewOrchestrator(svc, store.Events(), NewMemoryRegistry(), clock, Options{}, nil)

	layout, err := svc.CreateLayout(context.Background(), testUser, "Bulk", false)
	require.NoError(t, err)
	return &bulkFixture{orch: orch, svc: svc, store: store, layout: layout}
}

func widget(row, col, rowSpan, colSpan int) domain.RegionFields {
	return domain.RegionFields{
		RegionType: domain.RegionTypeWidget,
		GridRow:    row,
		GridCol:    col,
		RowSpan:    rowSpan,
		ColSpan:    colSpan,
		Config:     json.RawMessage(`{}`),
	}
}

func (f *bulkFixture) live(t *testing.T) []domain.Region {
	t.Helper()
	regions, err := f.svc.ListRegions(context.Background(), testUser, f.layout.ID)
	require.NoError(t, err)
	return regions
}

func (f *bulkFixture) run(t *testing.T, ops ...BulkOperation) Result {
	t.Helper()
	s, err := f.orch.CreateBulkRegionSaga(testUser, f.layout.ID, ops)
	require.NoError(t, err)
	return f.orch.ExecuteSaga(context.Background(), s)
}

func TestBulkSaga_CreatesAll(t *testing.T) {
	f := newBulkFixture(t)

	result := f.run(t,
		BulkOperation{Kind: OpCreate, Fields: widget(0, 0, 1, 4)},
		BulkOperation{Kind: OpCreate, Fields: widget(0, 4, 1, 4)},
		BulkOperation{Kind: OpCreate, Fields: widget(0, 8, 1, 4)},
	)

	require.True(t, result.Success, "%v", result.Err)
	assert.Equal(t, []string{"1-create", "2-create", "3-create"}, result.ExecutedSteps)
	assert.Len(t, f.live(t), 3)
}

func TestBulkSaga_InvalidThirdCreateLeavesNothing(t *testing.T) {
	f := newBulkFixture(t)
	before := len(f.live(t))

	result := f.run(t,
		BulkOperation{Kind: OpCreate, Fields: widget(0, 0, 1, 4)},
		BulkOperation{Kind: OpCreate, Fields: widget(0, 4, 1, 4)},
		BulkOperation{Kind: OpCreate, Fields: widget(0, 10, 1, 4)},
	)

	assert.False(t, result.Success)
	assert.Equal(t, "3-create", result.FailedStep)
	assert.ErrorIs(t, result.Err, apperrors.ErrValidation)
	assert.Equal(t, []string{"2-create", "1-create"}, result.CompensatedSteps)
	assert.Len(t, f.live(t), before)
}

func TestBulkSaga_OverlapRollsBackWithPosition(t *testing.T) {
	f := newBulkFixture(t)
	_, err := f.svc.CreateRegion(context.Background(), testUser,
		dashboard.CreateRegionInput{LayoutID: f.layout.ID, RegionFields: widget(0, 0, 1, 1)})
	require.NoError(t, err)

	result := f.run(t,
		BulkOperation{Kind: OpCreate, Fields: widget(2, 0, 1, 1)},
		BulkOperation{Kind: OpCreate, Fields: widget(0, 0, 2, 2)},
	)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, apperrors.ErrOverlapConflict)
	assert.Contains(t, result.Err.Error(), "row 0, col 0")
	assert.Len(t, f.live(t), 1)
}

func TestBulkSaga_UpdateAndDeleteRestoredOnFailure(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateRegion(ctx, testUser, dashboard.CreateRegionInput{LayoutID: f.layout.ID, RegionFields: widget(0, 0, 2, 2)})
	require.NoError(t, err)
	b, err := f.svc.CreateRegion(ctx, testUser, dashboard.CreateRegionInput{LayoutID: f.layout.ID, RegionFields: widget(4, 0, 2, 2)})
	require.NoError(t, err)

	newRow := 8
	result := f.run(t,
		BulkOperation{Kind: OpUpdate, RegionID: a.ID, Patch: domain.RegionPatch{GridRow: &newRow}},
		BulkOperation{Kind: OpDelete, RegionID: b.ID},
		BulkOperation{Kind: OpCreate, Fields: widget(0, 0, 0, 1)},
	)

	require.False(t, result.Success)
	assert.Equal(t, "3-create", result.FailedStep)
	assert.Equal(t, []string{"2-delete", "1-update"}, result.CompensatedSteps)
	assert.Empty(t, result.CompensationErrors)

	regions := f.live(t)
	require.Len(t, regions, 2)
	byID := map[uuid.UUID]domain.Region{}
	for _, r := range regions {
		byID[r.ID] = r
	}
	assert.Equal(t, a.RegionFields.Rect(), byID[a.ID].Rect())
	assert.Equal(t, b.RegionFields.Rect(), byID[b.ID].Rect())
	assert.False(t, byID[b.ID].IsDeleted())
}

func TestBulkSaga_StaleExpectedVersionFailsAfterRetries(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	region, err := f.svc.CreateRegion(ctx, testUser, dashboard.CreateRegionInput{LayoutID: f.layout.ID, RegionFields: widget(0, 0, 1, 1)})
	require.NoError(t, err)

	col := 3
	result := f.run(t, BulkOperation{Kind: OpUpdate, RegionID: region.ID, Patch: domain.RegionPatch{GridCol: &col}, ExpectedVersion: 7})

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, apperrors.ErrVersionConflict)

	got, err := f.svc.GetRegion(ctx, testUser, region.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.GridCol)
	assert.Equal(t, 1, got.Version)
}

func TestBulkSaga_RegionFromOtherLayoutNotFound(t *testing.T) {
	f := newBulkFixture(t)
	ctx := context.Background()

	other, err := f.svc.CreateLayout(ctx, testUser, "Other", false)
	require.NoError(t, err)
	foreign, err := f.svc.CreateRegion(ctx, testUser, dashboard.CreateRegionInput{LayoutID: other.ID, RegionFields: widget(0, 0, 1, 1)})
	require.NoError(t, err)

	result := f.run(t, BulkOperation{Kind: OpDelete, RegionID: foreign.ID})

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, apperrors.ErrNotFound)
	_, err = f.svc.GetRegion(ctx, testUser, foreign.ID)
	assert.NoError(t, err)
}

func TestCreateBulkRegionSaga_RejectsMalformedOperations(t *testing.T) {
	f := newBulkFixture(t)

	tests := []struct {
		name string
		ops  []BulkOperation
	}{
		{"empty", nil},
		{"update without id", []BulkOperation{{Kind: OpUpdate}}},
		{"delete without id", []BulkOperation{{Kind: OpDelete}}},
		{"unknown kind", []BulkOperation{{Kind: "move", RegionID: uuid.New()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.orch.CreateBulkRegionSaga(testUser, f.layout.ID, tt.ops)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}
