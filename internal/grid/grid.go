// Package grid implements the bounds and collision rules of the 12-column layout grid.
//
// Overlap detection is a linear scan. Layouts hold dozens of regions, so a
// spatial index is only worth adding if that grows materially.
package grid

import (
	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
)

// ValidateBounds checks the range invariants of a region rectangle.
func ValidateBounds(r domain.Rect) error {
	switch {
	case r.Row < 0:
		return apperrors.ValidationError("grid_row must be >= 0").WithField("grid_row", r.Row)
	case r.Col < 0:
		return apperrors.ValidationError("grid_col must be >= 0").WithField("grid_col", r.Col)
	case r.ColSpan < 1 || r.ColSpan > domain.GridColumns:
		return apperrors.ValidationError("col_span must be between 1 and 12").WithField("col_span", r.ColSpan)
	case r.RowSpan < 1 || r.RowSpan > domain.MaxRowSpan:
		return apperrors.ValidationError("row_span must be between 1 and 20").WithField("row_span", r.RowSpan)
	case r.Col+r.ColSpan > domain.GridColumns:
		return apperrors.ValidationError("region exceeds grid width: grid_col + col_span must be <= 12").
			WithField("grid_col", r.Col).
			WithField("col_span", r.ColSpan)
	}
	return nil
}

// Overlaps reports strict rectangle intersection. Shared edges do not count.
func Overlaps(a, b domain.Rect) bool {
	return a.Col < b.Col+b.ColSpan &&
		a.Col+a.ColSpan > b.Col &&
		a.Row < b.Row+b.RowSpan &&
		a.Row+a.RowSpan > b.Row
}

// FindOverlap scans existing in order and fails on the first live region,
// other than exclude, that intersects candidate.
func FindOverlap(candidate domain.Rect, existing []domain.Region, exclude uuid.UUID) error {
	for i := range existing {
		r := &existing[i]
		if r.IsDeleted() || (exclude != uuid.Nil && r.ID == exclude) {
			continue
		}
		if Overlaps(candidate, r.Rect()) {
			return apperrors.OverlapConflictError(r.GridRow, r.GridCol).WithField("region_id", r.ID.String())
		}
	}
	return nil
}
