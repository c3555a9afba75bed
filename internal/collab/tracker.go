// Package collab tracks who is looking at and editing which region.
//
// Everything here is advisory. Presence writes are best-effort, reads fail
// open to an empty result, and a held lock never blocks a mutation.
package collab

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
	"github.com/pscheid92/gridlayout/internal/domain"
)

const DefaultStaleAfter = 5 * time.Minute

type Options struct {
	// StaleAfter is how long a heartbeat keeps a presence row active.
	StaleAfter time.Duration
	// WriteRate and WriteBurst throttle presence heartbeats process-wide.
	// Heartbeats over the limit are dropped. A zero WriteRate disables throttling.
	WriteRate  float64
	WriteBurst int
}

// LockResult reports the outcome of an advisory lock attempt. LockedBy is set
// when another user holds the region.
type LockResult struct {
	Acquired bool
	LockedBy uuid.UUID
}

// ProposedChanges lists the regions a pending edit touches.
type ProposedChanges struct {
	RegionIDs []uuid.UUID
}

type Editor struct {
	UserID    uuid.UUID
	SessionID string
	LastSeen  time.Time
}

// Conflict names the other users currently editing a region.
type Conflict struct {
	RegionID uuid.UUID
	Editors  []Editor
}

type Tracker struct {
	presence   domain.PresenceRepository
	clock      clockwork.Clock
	staleAfter time.Duration
	limiter    *rate.Limiter
	readGroup  singleflight.Group
	metrics    *metrics.PresenceMetrics
}

// NewTracker creates a presence tracker. m may be nil.
func NewTracker(presence domain.PresenceRepository, clock clockwork.Clock, opts Options, m *metrics.PresenceMetrics) *Tracker {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	t := &Tracker{
		presence:   presence,
		clock:      clock,
		staleAfter: opts.StaleAfter,
		metrics:    m,
	}
	if opts.WriteRate > 0 {
		burst := max(opts.WriteBurst, 1)
		t.limiter = rate.NewLimiter(rate.Limit(opts.WriteRate), burst)
	}
	return t
}

// UpdatePresence records a heartbeat for (region, user, session). Failures and
// throttled writes are swallowed.
func (t *Tracker) UpdatePresence(ctx context.Context, tenantID, regionID, userID uuid.UUID, sessionID string, isEditing bool) {
	now := t.clock.Now()
	if t.limiter != nil && !t.limiter.AllowN(now, 1) {
		t.countWrite("dropped")
		slog.DebugContext(ctx, "Presence heartbeat dropped by rate limit", "region_id", regionID.String())
		return
	}

	err := t.presence.Upsert(ctx, domain.PresenceRecord{
		RegionID:  regionID,
		TenantID:  tenantID,
		UserID:    userID,
		SessionID: sessionID,
		IsEditing: isEditing,
		LastSeen:  now,
	})
	if err != nil {
		t.countWrite("error")
		slog.WarnContext(ctx, "Failed to update presence", "region_id", regionID.String(), "error", err)
		return
	}
	t.countWrite("stored")
}

// GetPresence purges stale rows for the region and returns the rest.
// Concurrent calls for the same region share one store round-trip.
// Any error yields an empty list.
func (t *Tracker) GetPresence(ctx context.Context, regionID, tenantID uuid.UUID) []domain.PresenceRecord {
	key := tenantID.String() + ":" + regionID.String()
	v, err, _ := t.readGroup.Do(key, func() (any, error) {
		cutoff := t.clock.Now().Add(-t.staleAfter)
		if err := t.presence.DeleteStale(ctx, tenantID, regionID, cutoff); err != nil {
			return nil, err
		}
		return t.presence.ListByRegion(ctx, tenantID, regionID)
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to read presence", "region_id", regionID.String(), "error", err)
		return []domain.PresenceRecord{}
	}

	records, _ := v.([]domain.PresenceRecord)
	if records == nil {
		return []domain.PresenceRecord{}
	}
	return slices.Clone(records)
}

// AcquireLock takes the advisory editing lock on a region. It fails when a
// different user has an active editing row inside the staleness window. The
// same user in another session does not block. On success the caller's own
// editing presence is recorded. Store errors yield Acquired=false.
func (t *Tracker) AcquireLock(ctx context.Context, regionID, userID, tenantID uuid.UUID, sessionID string) LockResult {
	now := t.clock.Now()

	editing, err := t.presence.ListEditing(ctx, tenantID, []uuid.UUID{regionID}, now.Add(-t.staleAfter))
	if err != nil {
		t.countLock("error")
		slog.WarnContext(ctx, "Failed to check region lock", "region_id", regionID.String(), "error", err)
		return LockResult{}
	}
	for _, rec := range editing {
		if rec.UserID != userID {
			t.countLock("held")
			return LockResult{LockedBy: rec.UserID}
		}
	}

	err = t.presence.Upsert(ctx, domain.PresenceRecord{
		RegionID:  regionID,
		TenantID:  tenantID,
		UserID:    userID,
		SessionID: sessionID,
		IsEditing: true,
		LastSeen:  now,
	})
	if err != nil {
		t.countLock("error")
		slog.WarnContext(ctx, "Failed to record editing presence", "region_id", regionID.String(), "error", err)
		return LockResult{}
	}

	t.countLock("acquired")
	return LockResult{Acquired: true}
}

// ReleaseLock clears the editing flag on the caller's own presence row.
func (t *Tracker) ReleaseLock(ctx context.Context, regionID, userID, tenantID uuid.UUID, sessionID string) {
	if err := t.presence.SetEditing(ctx, tenantID, regionID, userID, sessionID, false, t.clock.Now()); err != nil {
		slog.WarnContext(ctx, "Failed to release region lock", "region_id", regionID.String(), "error", err)
	}
}

// DetectConflicts returns, per touched region, the other users currently
// editing it. It never blocks a write. Empty input returns without touching
// the store.
func (t *Tracker) DetectConflicts(ctx context.Context, layoutID uuid.UUID, changes ProposedChanges, tenantID, userID uuid.UUID) []Conflict {
	if len(changes.RegionIDs) == 0 {
		return []Conflict{}
	}

	since := t.clock.Now().Add(-t.staleAfter)
	editing, err := t.presence.ListEditing(ctx, tenantID, changes.RegionIDs, since)
	if err != nil {
		slog.WarnContext(ctx, "Failed to detect editing conflicts", "layout_id", layoutID.String(), "error", err)
		return []Conflict{}
	}

	byRegion := make(map[uuid.UUID]*Conflict)
	seen := make(map[[2]uuid.UUID]bool)
	for _, rec := range editing {
		if rec.UserID == userID || seen[[2]uuid.UUID{rec.RegionID, rec.UserID}] {
			continue
		}
		seen[[2]uuid.UUID{rec.RegionID, rec.UserID}] = true

		c, ok := byRegion[rec.RegionID]
		if !ok {
			c = &Conflict{RegionID: rec.RegionID}
			byRegion[rec.RegionID] = c
		}
		c.Editors = append(c.Editors, Editor{UserID: rec.UserID, SessionID: rec.SessionID, LastSeen: rec.LastSeen})
	}

	conflicts := make([]Conflict, 0, len(byRegion))
	for _, id := range changes.RegionIDs {
		if c, ok := byRegion[id]; ok {
			conflicts = append(conflicts, *c)
			delete(byRegion, id)
		}
	}
	if t.metrics != nil && len(conflicts) > 0 {
		t.metrics.ConflictHints.Add(float64(len(conflicts)))
	}
	return conflicts
}

func (t *Tracker) countWrite(result string) {
	if t.metrics != nil {
		t.metrics.Writes.WithLabelValues(result).Inc()
	}
}

func (t *Tracker) countLock(result string) {
	if t.metrics != nil {
		t.metrics.LockAttempts.WithLabelValues(result).Inc()
	}
}
