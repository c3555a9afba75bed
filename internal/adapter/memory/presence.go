package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
)

type presenceRepo struct {
	s *Store
}

func (r *presenceRepo) Upsert(_ context.Context, rec domain.PresenceRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.presence[presenceKey{RegionID: rec.RegionID, UserID: rec.UserID, SessionID: rec.SessionID}] = rec
	return nil
}

func (r *presenceRepo) DeleteStale(_ context.Context, tenantID, regionID uuid.UUID, cutoff time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for k, rec := range r.s.presence {
		if rec.TenantID == tenantID && rec.RegionID == regionID && rec.LastSeen.Before(cutoff) {
			delete(r.s.presence, k)
		}
	}
	return nil
}

func sortPresence(out []domain.PresenceRecord) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].SessionID < out[j].SessionID
	})
}

func (r *presenceRepo) ListByRegion(_ context.Context, tenantID, regionID uuid.UUID) ([]domain.PresenceRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.PresenceRecord
	for _, rec := range r.s.presence {
		if rec.TenantID == tenantID && rec.RegionID == regionID {
			out = append(out, rec)
		}
	}
	sortPresence(out)
	return out, nil
}

func (r *presenceRepo) ListEditing(_ context.Context, tenantID uuid.UUID, regionIDs []uuid.UUID, since time.Time) ([]domain.PresenceRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.PresenceRecord
	for _, rec := range r.s.presence {
		if rec.TenantID == tenantID && rec.IsEditing && !rec.LastSeen.Before(since) && slices.Contains(regionIDs, rec.RegionID) {
			out = append(out, rec)
		}
	}
	sortPresence(out)
	return out, nil
}

func (r *presenceRepo) SetEditing(_ context.Context, tenantID, regionID, userID uuid.UUID, sessionID string, editing bool, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := presenceKey{RegionID: regionID, UserID: userID, SessionID: sessionID}
	rec, ok := r.s.presence[k]
	if !ok {
		if !editing {
			return nil
		}
		rec = domain.PresenceRecord{RegionID: regionID, TenantID: tenantID, UserID: userID, SessionID: sessionID}
	}
	if rec.TenantID != tenantID {
		return nil
	}
	rec.IsEditing = editing
	rec.LastSeen = now
	r.s.presence[k] = rec
	return nil
}
