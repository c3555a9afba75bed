package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/pscheid92/gridlayout/internal/domain"
)

type eventLog struct {
	s *Store
}

func (e *eventLog) AppendEvent(_ context.Context, event domain.Event) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	e.s.events = append(e.s.events, event)
	return nil
}
