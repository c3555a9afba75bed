package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sweepScanCount = 100

// SweepStats summarises one Sweep pass.
type SweepStats struct {
	Keys    int // presence hashes inspected
	Stale   int // fields last seen before the cutoff
	Skipped int // keys or hashes that could not be parsed
}

func parsePresenceKey(key string) (tenantID, regionID uuid.UUID, ok bool) {
	rest, found := strings.CutPrefix(key, "presence:")
	if !found {
		return uuid.Nil, uuid.Nil, false
	}
	tenantPart, regionPart, found := strings.Cut(rest, ":")
	if !found {
		return uuid.Nil, uuid.Nil, false
	}
	tenantID, err := uuid.Parse(tenantPart)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	regionID, err = uuid.Parse(regionPart)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, regionID, true
}

// Sweep removes stale fields from every presence hash. The tracker already
// purges a region whenever it is read; Sweep covers regions nobody reads
// again before their key TTL runs out. With dryRun set, nothing is deleted.
func (s *PresenceStore) Sweep(ctx context.Context, cutoff time.Time, dryRun bool) (SweepStats, error) {
	var stats SweepStats
	var cursor uint64

	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, "presence:*", sweepScanCount).Result()
		if err != nil {
			return stats, fmt.Errorf("scan failed: %w", err)
		}

		for _, key := range keys {
			tenantID, regionID, ok := parsePresenceKey(key)
			if !ok {
				slog.WarnContext(ctx, "Skipping unrecognised presence key", "key", key)
				stats.Skipped++
				continue
			}

			fields, err := s.rdb.HGetAll(ctx, key).Result()
			if err != nil {
				return stats, fmt.Errorf("failed to read %s: %w", key, err)
			}
			records, err := decodeAll(tenantID, regionID, fields)
			if err != nil {
				slog.WarnContext(ctx, "Skipping malformed presence hash", "key", key, "error", err)
				stats.Skipped++
				continue
			}
			stats.Keys++

			var stale []string
			for _, rec := range records {
				if rec.LastSeen.Before(cutoff) {
					stale = append(stale, presenceField(rec.UserID, rec.SessionID))
				}
			}
			stats.Stale += len(stale)
			if len(stale) == 0 || dryRun {
				continue
			}

			removed, err := s.deleteStale(ctx, key, cutoff, stale)
			if err != nil {
				return stats, fmt.Errorf("failed to delete stale presence in %s: %w", key, err)
			}
			slog.DebugContext(ctx, "Swept stale presence", "tenant_id", tenantID.String(), "region_id", regionID.String(), "removed", removed)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return stats, nil
}
