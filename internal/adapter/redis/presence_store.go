package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/gridlayout/internal/domain"
)

// PresenceStore keeps presence in one hash per (tenant, region). Each field
// is "<user_id>/<session_id>" with value "<editing 0|1>:<last_seen unix ms>".
// Every write refreshes the key TTL, so abandoned regions expire on their own.
type PresenceStore struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

var _ domain.PresenceRepository = (*PresenceStore)(nil)

// NewPresenceStore creates a presence store whose keys live for ttl after the
// last write. ttl should exceed the tracker's staleness window.
func NewPresenceStore(rdb goredis.Cmdable, ttl time.Duration) *PresenceStore {
	return &PresenceStore{rdb: rdb, ttl: ttl}
}

// clearEditingScript flips an existing field to not-editing and leaves
// missing fields alone.
// KEYS: [1]=presence key; ARGV: [1]=field, [2]=value, [3]=ttl_ms
var clearEditingScript = goredis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
	return 1
end
return 0
`)

// deleteStaleScript re-reads each candidate field and deletes it only if its
// stored timestamp is still before the cutoff, so a heartbeat that lands after
// the caller's read survives.
// KEYS: [1]=presence key; ARGV: [1]=cutoff unix ms, [2..]=candidate fields
var deleteStaleScript = goredis.NewScript(`
local cutoff = tonumber(ARGV[1])
local removed = 0
for i = 2, #ARGV do
	local value = redis.call('HGET', KEYS[1], ARGV[i])
	if value then
		local ms = tonumber(string.match(value, ':(%d+)$'))
		if ms and ms < cutoff then
			redis.call('HDEL', KEYS[1], ARGV[i])
			removed = removed + 1
		end
	end
end
return removed
`)

func presenceKey(tenantID, regionID uuid.UUID) string {
	return "presence:" + tenantID.String() + ":" + regionID.String()
}

func presenceField(userID uuid.UUID, sessionID string) string {
	return userID.String() + "/" + sessionID
}

func encodePresence(editing bool, lastSeen time.Time) string {
	flag := "0"
	if editing {
		flag = "1"
	}
	return flag + ":" + strconv.FormatInt(lastSeen.UnixMilli(), 10)
}

func decodePresence(tenantID, regionID uuid.UUID, field, value string) (domain.PresenceRecord, error) {
	userPart, sessionID, ok := strings.Cut(field, "/")
	if !ok {
		return domain.PresenceRecord{}, fmt.Errorf("malformed presence field %q", field)
	}
	userID, err := uuid.Parse(userPart)
	if err != nil {
		return domain.PresenceRecord{}, fmt.Errorf("malformed presence user %q: %w", userPart, err)
	}
	flag, ms, ok := strings.Cut(value, ":")
	if !ok {
		return domain.PresenceRecord{}, fmt.Errorf("malformed presence value %q", value)
	}
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return domain.PresenceRecord{}, fmt.Errorf("malformed presence timestamp %q: %w", ms, err)
	}

	return domain.PresenceRecord{
		RegionID:  regionID,
		TenantID:  tenantID,
		UserID:    userID,
		SessionID: sessionID,
		IsEditing: flag == "1",
		LastSeen:  time.UnixMilli(millis).UTC(),
	}, nil
}

func (s *PresenceStore) Upsert(ctx context.Context, rec domain.PresenceRecord) error {
	key := presenceKey(rec.TenantID, rec.RegionID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, presenceField(rec.UserID, rec.SessionID), encodePresence(rec.IsEditing, rec.LastSeen))
		pipe.PExpire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}
	return nil
}

func (s *PresenceStore) DeleteStale(ctx context.Context, tenantID, regionID uuid.UUID, cutoff time.Time) error {
	key := presenceKey(tenantID, regionID)
	records, err := s.load(ctx, tenantID, regionID)
	if err != nil {
		return err
	}

	var stale []string
	for _, rec := range records {
		if rec.LastSeen.Before(cutoff) {
			stale = append(stale, presenceField(rec.UserID, rec.SessionID))
		}
	}
	if _, err := s.deleteStale(ctx, key, cutoff, stale); err != nil {
		return fmt.Errorf("failed to delete stale presence: %w", err)
	}
	return nil
}

// deleteStale removes the candidate fields that are still stale when the
// script runs and returns how many were removed.
func (s *PresenceStore) deleteStale(ctx context.Context, key string, cutoff time.Time, fields []string) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(fields)+1)
	args = append(args, cutoff.UnixMilli())
	for _, f := range fields {
		args = append(args, f)
	}
	return deleteStaleScript.Run(ctx, s.rdb, []string{key}, args...).Int64()
}

func (s *PresenceStore) ListByRegion(ctx context.Context, tenantID, regionID uuid.UUID) ([]domain.PresenceRecord, error) {
	records, err := s.load(ctx, tenantID, regionID)
	if err != nil {
		return nil, err
	}
	sortPresence(records)
	return records, nil
}

func (s *PresenceStore) ListEditing(ctx context.Context, tenantID uuid.UUID, regionIDs []uuid.UUID, since time.Time) ([]domain.PresenceRecord, error) {
	if len(regionIDs) == 0 {
		return nil, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(regionIDs))
	_, err := s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, regionID := range regionIDs {
			cmds[i] = pipe.HGetAll(ctx, presenceKey(tenantID, regionID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list editing presence: %w", err)
	}

	var out []domain.PresenceRecord
	for i, cmd := range cmds {
		records, err := decodeAll(tenantID, regionIDs[i], cmd.Val())
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if rec.IsEditing && !rec.LastSeen.Before(since) {
				out = append(out, rec)
			}
		}
	}
	sortPresence(out)
	return out, nil
}

func (s *PresenceStore) SetEditing(ctx context.Context, tenantID, regionID, userID uuid.UUID, sessionID string, editing bool, now time.Time) error {
	if editing {
		return s.Upsert(ctx, domain.PresenceRecord{
			RegionID:  regionID,
			TenantID:  tenantID,
			UserID:    userID,
			SessionID: sessionID,
			IsEditing: true,
			LastSeen:  now,
		})
	}

	err := clearEditingScript.Run(ctx, s.rdb, []string{presenceKey(tenantID, regionID)},
		presenceField(userID, sessionID),
		encodePresence(false, now),
		s.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to clear editing flag: %w", err)
	}
	return nil
}

func (s *PresenceStore) load(ctx context.Context, tenantID, regionID uuid.UUID) ([]domain.PresenceRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, presenceKey(tenantID, regionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load presence: %w", err)
	}
	return decodeAll(tenantID, regionID, fields)
}

func decodeAll(tenantID, regionID uuid.UUID, fields map[string]string) ([]domain.PresenceRecord, error) {
	records := make([]domain.PresenceRecord, 0, len(fields))
	for field, value := range fields {
		rec, err := decodePresence(tenantID, regionID, field, value)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// sortPresence orders newest first, then by session for a stable result.
func sortPresence(records []domain.PresenceRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].LastSeen.Equal(records[j].LastSeen) {
			return records[i].LastSeen.After(records[j].LastSeen)
		}
		return records[i].SessionID < records[j].SessionID
	})
}
