package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Grid dimensions.
const (
	GridColumns = 12
	MaxRowSpan  = 20
)

type RegionType string

const (
	RegionTypeHeader  RegionType = "header"
	RegionTypeSidebar RegionType = "sidebar"
	RegionTypeMain    RegionType = "main"
	RegionTypeFooter  RegionType = "footer"
	RegionTypeWidget  RegionType = "widget"
	RegionTypeCustom  RegionType = "custom"
)

func ParseRegionType(s string) (RegionType, bool) {
	switch t := RegionType(s); t {
	case RegionTypeHeader, RegionTypeSidebar, RegionTypeMain, RegionTypeFooter, RegionTypeWidget, RegionTypeCustom:
		return t, true
	default:
		return "", false
	}
}

// RegionFields is the user-editable part of a region. It is what snapshots
// compare and what restores write back.
type RegionFields struct {
	RegionType     RegionType      `json:"region_type"`
	GridRow        int             `json:"grid_row"`
	GridCol        int             `json:"grid_col"`
	RowSpan        int             `json:"row_span"`
	ColSpan        int             `json:"col_span"`
	MinWidth       int             `json:"min_width"`
	MinHeight      int             `json:"min_height"`
	IsCollapsed    bool            `json:"is_collapsed"`
	IsLocked       bool            `json:"is_locked"`
	IsHiddenMobile bool            `json:"is_hidden_mobile"`
	Config         json.RawMessage `json:"config,omitempty"`
	WidgetType     string          `json:"widget_type,omitempty"`
	WidgetConfig   json.RawMessage `json:"widget_config,omitempty"`
	DisplayOrder   int             `json:"display_order"`
}

type Region struct {
	ID       uuid.UUID `json:"id"`
	LayoutID uuid.UUID `json:"layout_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	UserID   uuid.UUID `json:"user_id"`

	RegionFields

	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (r Region) IsDeleted() bool { return r.DeletedAt != nil }

// Rect is an axis-aligned grid rectangle.
type Rect struct {
	Row, Col, RowSpan, ColSpan int
}

func (f RegionFields) Rect() Rect {
	return Rect{Row: f.GridRow, Col: f.GridCol, RowSpan: f.RowSpan, ColSpan: f.ColSpan}
}

// RegionPatch is a partial update; nil fields are left unchanged.
type RegionPatch struct {
	RegionType     *RegionType
	GridRow        *int
	GridCol        *int
	RowSpan        *int
	ColSpan        *int
	MinWidth       *int
	MinHeight      *int
	IsCollapsed    *bool
	IsLocked       *bool
	IsHiddenMobile *bool
	Config         json.RawMessage
	WidgetType     *string
	WidgetConfig   json.RawMessage
	DisplayOrder   *int
}

// ApplyTo returns f with the patch applied.
func (p RegionPatch) ApplyTo(f RegionFields) RegionFields {
	if p.RegionType != nil {
		f.RegionType = *p.RegionType
	}
	if p.GridRow != nil {
		f.GridRow = *p.GridRow
	}
	if p.GridCol != nil {
		f.GridCol = *p.GridCol
	}
	if p.RowSpan != nil {
		f.RowSpan = *p.RowSpan
	}
	if p.ColSpan != nil {
		f.ColSpan = *p.ColSpan
	}
	if p.MinWidth != nil {
		f.MinWidth = *p.MinWidth
	}
	if p.MinHeight != nil {
		f.MinHeight = *p.MinHeight
	}
	if p.IsCollapsed != nil {
		f.IsCollapsed = *p.IsCollapsed
	}
	if p.IsLocked != nil {
		f.IsLocked = *p.IsLocked
	}
	if p.IsHiddenMobile != nil {
		f.IsHiddenMobile = *p.IsHiddenMobile
	}
	if p.Config != nil {
		f.Config = p.Config
	}
	if p.WidgetType != nil {
		f.WidgetType = *p.WidgetType
	}
	if p.WidgetConfig != nil {
		f.WidgetConfig = p.WidgetConfig
	}
	if p.DisplayOrder != nil {
		f.DisplayOrder = *p.DisplayOrder
	}
	return f
}

// PatchFromFields builds a patch that overwrites every field.
func PatchFromFields(f RegionFields) RegionPatch {
	return RegionPatch{
		RegionType:     &f.RegionType,
		GridRow:        &f.GridRow,
		GridCol:        &f.GridCol,
		RowSpan:        &f.RowSpan,
		ColSpan:        &f.ColSpan,
		MinWidth:       &f.MinWidth,
		MinHeight:      &f.MinHeight,
		IsCollapsed:    &f.IsCollapsed,
		IsLocked:       &f.IsLocked,
		IsHiddenMobile: &f.IsHiddenMobile,
		Config:         f.Config,
		WidgetType:     &f.WidgetType,
		WidgetConfig:   f.WidgetConfig,
		DisplayOrder:   &f.DisplayOrder,
	}
}

// RegionFilter selects regions. TenantID is mandatory for every query.
type RegionFilter struct {
	TenantID       uuid.UUID
	LayoutID       uuid.UUID   // uuid.Nil = any layout
	IDs            []uuid.UUID // empty = any id
	IncludeDeleted bool
}

// RegionRepository abstracts region persistence.
//
// Find returns rows in a stable order (display_order, grid_row, grid_col, id).
// Update applies fields to the live row matching (tenant, id) and, when the
// check is Checked(n), also version = n; the stored version becomes n+1 (or
// current+1 when Unchecked). Zero matching rows yields ErrNoRowsAffected.
type RegionRepository interface {
	Find(ctx context.Context, filter RegionFilter) ([]Region, error)
	Count(ctx context.Context, filter RegionFilter) (int, error)
	Insert(ctx context.Context, region Region) (*Region, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, fields RegionFields, check VersionCheck, now time.Time) (*Region, error)
	SoftDelete(ctx context.Context, tenantID, id uuid.UUID, now time.Time) error
	Undelete(ctx context.Context, tenantID, id uuid.UUID, now time.Time) error
}
