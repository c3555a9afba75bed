package versioning

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
)

// Diff computes the structural delta from one snapshot to another. Region identity is the
// region ID; only user-editable fields are compared, so version counters and
// timestamps never show up as modifications.
func Diff(from, to domain.Snapshot) domain.VersionDiff {
	before := make(map[uuid.UUID]domain.Region, len(from.Regions))
	for _, r := range from.Regions {
		before[r.ID] = r
	}
	after := make(map[uuid.UUID]struct{}, len(to.Regions))

	diff := domain.VersionDiff{
		Added:    []uuid.UUID{},
		Removed:  []uuid.UUID{},
		Modified: []domain.RegionChange{},
	}
	for _, r := range to.Regions {
		after[r.ID] = struct{}{}
		prev, ok := before[r.ID]
		if !ok {
			diff.Added = append(diff.Added, r.ID)
			continue
		}
		if fields := changedFields(prev.RegionFields, r.RegionFields); len(fields) > 0 {
			diff.Modified = append(diff.Modified, domain.RegionChange{RegionID: r.ID, Fields: fields})
		}
	}
	for _, r := range from.Regions {
		if _, ok := after[r.ID]; !ok {
			diff.Removed = append(diff.Removed, r.ID)
		}
	}
	return diff
}

func changedFields(a, b domain.RegionFields) []string {
	var fields []string
	add := func(name string, differs bool) {
		if differs {
			fields = append(fields, name)
		}
	}

	add("region_type", a.RegionType != b.RegionType)
	add("grid_row", a.GridRow != b.GridRow)
	add("grid_col", a.GridCol != b.GridCol)
	add("row_span", a.RowSpan != b.RowSpan)
	add("col_span", a.ColSpan != b.ColSpan)
	add("min_width", a.MinWidth != b.MinWidth)
	add("min_height", a.MinHeight != b.MinHeight)
	add("is_collapsed", a.IsCollapsed != b.IsCollapsed)
	add("is_locked", a.IsLocked != b.IsLocked)
	add("is_hidden_mobile", a.IsHiddenMobile != b.IsHiddenMobile)
	add("config", !jsonEqual(a.Config, b.Config))
	add("widget_type", a.WidgetType != b.WidgetType)
	add("widget_config", !jsonEqual(a.WidgetConfig, b.WidgetConfig))
	add("display_order", a.DisplayOrder != b.DisplayOrder)
	return fields
}

// jsonEqual compares two opaque JSON documents by value, so key order and
// whitespace do not matter. Empty and "null" are equal.
func jsonEqual(a, b json.RawMessage) bool {
	a, b = bytes.TrimSpace(a), bytes.TrimSpace(b)
	if isNull(a) && isNull(b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return bytes.Equal(a, b)
	}
	return reflect.DeepEqual(va, vb)
}

func isNull(b []byte) bool {
	return len(b) == 0 || string(b) == "null"
}
