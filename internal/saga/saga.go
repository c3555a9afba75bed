// Package saga runs multi-step operations with retry and reverse-order
// compensation.
//
// Sagas live in memory for exactly one ExecuteSaga call. Nothing is persisted,
// so a process crash mid-saga leaves whatever steps completed in place.
package saga

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxRetries = 3

// Step is one unit of a saga. Execute returns the data Rollback needs to undo
// it. A nil Rollback means the step has nothing to compensate.
type Step struct {
	ID         string
	Name       string
	Execute    func(ctx context.Context) (any, error)
	Rollback   func(ctx context.Context, data any) error
	Retryable  bool
	MaxRetries int
}

// NewStep returns a retryable step with the default retry budget.
func NewStep(id, name string, execute func(ctx context.Context) (any, error), rollback func(ctx context.Context, data any) error) Step {
	return Step{
		ID:         id,
		Name:       name,
		Execute:    execute,
		Rollback:   rollback,
		Retryable:  true,
		MaxRetries: DefaultMaxRetries,
	}
}

// attempts is 1 for non-retryable steps, otherwise 1+MaxRetries.
func (s Step) attempts() int {
	if !s.Retryable || s.MaxRetries <= 0 {
		return 1
	}
	return 1 + s.MaxRetries
}

// Saga is the in-memory execution context of one saga.
type Saga struct {
	SagaID        string
	UserID        uuid.UUID
	TenantID      uuid.UUID
	Steps         []Step
	ExecutedSteps []string
	RollbackData  map[string]any
}

func New(userID, tenantID uuid.UUID, steps ...Step) *Saga {
	return &Saga{
		SagaID:       uuid.NewString(),
		UserID:       userID,
		TenantID:     tenantID,
		Steps:        steps,
		RollbackData: make(map[string]any),
	}
}

func (s *Saga) step(id string) (Step, bool) {
	for _, st := range s.Steps {
		if st.ID == id {
			return st, true
		}
	}
	return Step{}, false
}

// Result is the outcome of ExecuteSaga. Failures are reported here rather
// than returned as an error, so callers can render partial progress.
type Result struct {
	Success            bool
	SagaID             string
	ExecutedSteps      []string
	FailedStep         string
	Err                error
	Duration           time.Duration
	CompensatedSteps   []string
	CompensationErrors []error
}
