package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/gridlayout/internal/domain"
)

// EventStream publishes domain events to a capped Redis stream per tenant,
// "events:<tenant_id>", for consumers outside this process.
type EventStream struct {
	rdb    goredis.Cmdable
	maxLen int64
}

var _ domain.EventStore = (*EventStream)(nil)

func NewEventStream(rdb goredis.Cmdable, maxLen int64) *EventStream {
	return &EventStream{rdb: rdb, maxLen: maxLen}
}

func streamKey(e domain.Event) string {
	return "events:" + e.TenantID.String()
}

func (s *EventStream) AppendEvent(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode event metadata: %w", err)
	}

	err = s.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey(e),
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":          e.ID.String(),
			"event_type":  e.EventType,
			"entity_type": e.EntityType,
			"entity_id":   e.EntityID,
			"user_id":     e.UserID.String(),
			"payload":     string(payload),
			"metadata":    string(metadata),
			"timestamp":   strconv.FormatInt(e.Timestamp.UnixMilli(), 10),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event to stream: %w", err)
	}
	return nil
}
