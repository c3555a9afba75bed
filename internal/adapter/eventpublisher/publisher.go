package eventpublisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
	"github.com/pscheid92/gridlayout/internal/domain"
)

// Sink is a named secondary event destination, such as the Redis stream.
type Sink struct {
	Name  string
	Store domain.EventStore
}

// EventPublisher implements domain.EventStore by appending to the primary
// store and then forwarding to every secondary sink. Only a primary failure
// is returned; secondary failures are logged and counted.
type EventPublisher struct {
	primary     domain.EventStore
	primaryName string
	secondaries []Sink
	metrics     *metrics.EventMetrics
}

var _ domain.EventStore = (*EventPublisher)(nil)

// New composes an event publisher. m may be nil.
func New(primaryName string, primary domain.EventStore, m *metrics.EventMetrics, secondaries ...Sink) *EventPublisher {
	return &EventPublisher{
		primary:     primary,
		primaryName: primaryName,
		secondaries: secondaries,
		metrics:     m,
	}
}

func (p *EventPublisher) AppendEvent(ctx context.Context, event domain.Event) error {
	if err := p.primary.AppendEvent(ctx, event); err != nil {
		p.count(p.primaryName, err)
		return fmt.Errorf("append event to %s: %w", p.primaryName, err)
	}
	p.count(p.primaryName, nil)

	for _, sink := range p.secondaries {
		err := sink.Store.AppendEvent(ctx, event)
		p.count(sink.Name, err)
		if err != nil {
			slog.WarnContext(ctx, "Failed to forward event", "sink", sink.Name, "event_type", event.EventType, "entity_id", event.EntityID, "error", err)
		}
	}
	return nil
}

func (p *EventPublisher) count(sink string, err error) {
	if p.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.metrics.Appended.WithLabelValues(sink, result).Inc()
}
