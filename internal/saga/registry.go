package saga

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks sagas while they execute. Start is called before the first
// step and Finish after the terminal outcome, whatever it is.
type Registry interface {
	Start(s *Saga) error
	Finish(sagaID string)
	Get(sagaID string) (*Saga, bool)
	Active() []string
}

// MemoryRegistry is a process-local Registry.
// It is thread-safe and can be used concurrently.
type MemoryRegistry struct {
	mu     sync.RWMutex
	active map[string]*Saga
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{active: make(map[string]*Saga)}
}

func (r *MemoryRegistry) Start(s *Saga) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[s.SagaID]; exists {
		return fmt.Errorf("saga %s is already running", s.SagaID)
	}
	r.active[s.SagaID] = s
	return nil
}

func (r *MemoryRegistry) Finish(sagaID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sagaID)
}

func (r *MemoryRegistry) Get(sagaID string) (*Saga, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.active[sagaID]
	return s, ok
}

// Active returns the IDs of running sagas in sorted order.
func (r *MemoryRegistry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
