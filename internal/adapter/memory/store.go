// Package memory provides an in-process implementation of every repository
// for single-instance deployments and tests. All state is lost on restart.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
)

type presenceKey struct {
	RegionID  uuid.UUID
	UserID    uuid.UUID
	SessionID string
}

type aclKey struct {
	RegionID      uuid.UUID
	PrincipalType domain.PrincipalType
	PrincipalID   string
}

// Store holds all rows behind a single RWMutex. Returned values are copies,
// so callers never alias stored state.
type Store struct {
	mu       sync.RWMutex
	layouts  map[uuid.UUID]domain.Layout
	regions  map[uuid.UUID]domain.Region
	versions map[uuid.UUID]domain.LayoutVersion
	presence map[presenceKey]domain.PresenceRecord
	acls     map[aclKey]domain.RegionACL
	events   []domain.Event
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		layouts:  make(map[uuid.UUID]domain.Layout),
		regions:  make(map[uuid.UUID]domain.Region),
		versions: make(map[uuid.UUID]domain.LayoutVersion),
		presence: make(map[presenceKey]domain.PresenceRecord),
		acls:     make(map[aclKey]domain.RegionACL),
	}
}

func (s *Store) Regions() domain.RegionRepository { return &regionRepo{s: s} }
func (s *Store) Layouts() domain.LayoutRepository { return &layoutRepo{s: s} }
func (s *Store) Versions() domain.VersionRepository { return &versionRepo{s: s} }
func (s *Store) Presence() domain.PresenceRepository { return &presenceRepo{s: s} }
func (s *Store) ACLs() domain.ACLRepository { return &aclRepo{s: s} }
func (s *Store) Events() domain.EventStore { return &eventLog{s: s} }

// EventLog returns a copy of all appended events in append order.
func (s *Store) EventLog() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

func cloneRaw(b []byte) []byte {
	if b == nil {
		return nil
	}
	return bytes.Clone(b)
}

func cloneRegion(r domain.Region) domain.Region {
	r.Config = cloneRaw(r.Config)
	r.WidgetConfig = cloneRaw(r.WidgetConfig)
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		r.DeletedAt = &t
	}
	return r
}

func cloneVersion(v domain.LayoutVersion) domain.LayoutVersion {
	regions := make([]domain.Region, len(v.Payload.Regions))
	for i, r := range v.Payload.Regions {
		regions[i] = cloneRegion(r)
	}
	v.Payload.Regions = regions
	if v.Diff != nil {
		d := domain.VersionDiff{
			Added:    append([]uuid.UUID(nil), v.Diff.Added...),
			Removed:  append([]uuid.UUID(nil), v.Diff.Removed...),
			Modified: make([]domain.RegionChange, len(v.Diff.Modified)),
		}
		for i, c := range v.Diff.Modified {
			d.Modified[i] = domain.RegionChange{RegionID: c.RegionID, Fields: append([]string(nil), c.Fields...)}
		}
		v.Diff = &d
	}
	return v
}

// sortRegions orders by display_order, grid_row, grid_col, id.
func sortRegions(rs []domain.Region) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		if a.GridRow != b.GridRow {
			return a.GridRow < b.GridRow
		}
		if a.GridCol != b.GridCol {
			return a.GridCol < b.GridCol
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
