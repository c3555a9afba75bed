package saga

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/gridlayout/internal/adapter/metrics"
	"github.com/pscheid92/gridlayout/internal/domain"
	"github.com/pscheid92/gridlayout/internal/platform/correlation"
	apperrors "github.com/pscheid92/gridlayout/internal/platform/errors"
	"github.com/pscheid92/gridlayout/internal/platform/retry"
)

const (
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 10 * time.Second
)

// Options configures step retry backoff: the n-th retry waits
// min(InitialBackoff·2^n, MaxBackoff).
type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Orchestrator struct {
	regions  RegionService
	events   domain.EventStore
	registry Registry
	clock    clockwork.Clock
	opts     Options
	metrics  *metrics.SagaMetrics
}

// NewOrchestrator creates a saga orchestrator. regions is only needed by the
// bulk-region builder; m may be nil.
func NewOrchestrator(regions RegionService, events domain.EventStore, registry Registry, clock clockwork.Clock, opts Options, m *metrics.SagaMetrics) *Orchestrator {
	return &Orchestrator{
		regions:  regions,
		events:   events,
		registry: registry,
		clock:    clock,
		opts:     opts,
		metrics:  m,
	}
}

// ExecuteSaga runs the steps in order. When a step fails terminally, every
// executed step is compensated in reverse order and the saga is reported as
// failed. Compensation failures are logged and collected, never escalated.
func (o *Orchestrator) ExecuteSaga(ctx context.Context, s *Saga) Result {
	start := o.clock.Now()
	if s.RollbackData == nil {
		s.RollbackData = make(map[string]any)
	}

	ctx = correlation.WithSaga(ctx, s.SagaID)
	ctx = correlation.WithPrincipal(ctx, s.TenantID.String(), s.UserID.String())

	if err := o.registry.Start(s); err != nil {
		return Result{SagaID: s.SagaID, Err: apperrors.ValidationError(err.Error())}
	}
	defer o.registry.Finish(s.SagaID)

	if o.metrics != nil {
		o.metrics.Active.Inc()
		defer o.metrics.Active.Dec()
	}

	slog.InfoContext(ctx, "Saga started", "steps", len(s.Steps))

	for _, step := range s.Steps {
		data, err := o.runStep(ctx, step)
		if err != nil {
			return o.fail(ctx, s, step, err, start)
		}
		s.ExecutedSteps = append(s.ExecutedSteps, step.ID)
		s.RollbackData[step.ID] = data
	}

	result := Result{
		Success:       true,
		SagaID:        s.SagaID,
		ExecutedSteps: append([]string(nil), s.ExecutedSteps...),
		Duration:      o.clock.Since(start),
	}
	o.finish(ctx, s, domain.EventSagaCompleted, "completed", result, map[string]any{
		"executed_steps": result.ExecutedSteps,
		"duration_ms":    result.Duration.Milliseconds(),
	})
	slog.InfoContext(ctx, "Saga completed", "steps", len(result.ExecutedSteps), "duration", result.Duration)
	return result
}

func (o *Orchestrator) runStep(ctx context.Context, step Step) (any, error) {
	policy := retry.Policy{
		MaxAttempts:    step.attempts(),
		InitialBackoff: o.opts.InitialBackoff,
		MaxBackoff:     o.opts.MaxBackoff,
		Clock:          o.clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			if o.metrics != nil {
				o.metrics.StepRetries.Inc()
			}
			slog.WarnContext(ctx, "Saga step failed, retrying", "step_id", step.ID, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	data, err := retry.Do(ctx, policy, classify, func() (any, error) {
		return step.Execute(ctx)
	})
	if err == nil {
		return data, nil
	}

	var permanent *retry.PermanentError
	var exhausted *retry.ExhaustedError
	switch {
	case errors.As(err, &permanent):
		return nil, permanent.Err
	case errors.As(err, &exhausted):
		return nil, exhausted.Err
	default:
		return nil, err
	}
}

// classify stops on errors a retry cannot fix. Version conflicts and store
// failures are treated as transient.
func classify(err error) retry.Action {
	switch apperrors.TypeOf(err) {
	case apperrors.TypeValidation, apperrors.TypeOverlapConflict, apperrors.TypeNotFound:
		return retry.Stop
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	return retry.Retry
}

func (o *Orchestrator) fail(ctx context.Context, s *Saga, failed Step, cause error, start time.Time) Result {
	slog.ErrorContext(ctx, "Saga step failed, compensating", "step_id", failed.ID, "step", failed.Name, "error", cause)

	// Compensations must run even when the caller's context is gone.
	compCtx := context.WithoutCancel(ctx)
	compensated, compErrs := o.compensate(compCtx, s)

	result := Result{
		SagaID:             s.SagaID,
		ExecutedSteps:      append([]string(nil), s.ExecutedSteps...),
		FailedStep:         failed.ID,
		Err:                apperrors.SagaStepFailureError(failed.ID, cause),
		Duration:           o.clock.Since(start),
		CompensatedSteps:   compensated,
		CompensationErrors: compErrs,
	}
	o.finish(compCtx, s, domain.EventSagaRolledBack, "rolled_back", result, map[string]any{
		"executed_steps":    result.ExecutedSteps,
		"duration_ms":       result.Duration.Milliseconds(),
		"failed_step":       failed.ID,
		"error":             cause.Error(),
		"compensated_steps": compensated,
	})
	return result
}

// compensate undoes executed steps newest first. A failing rollback does not
// stop the remaining ones.
func (o *Orchestrator) compensate(ctx context.Context, s *Saga) ([]string, []error) {
	compensated := []string{}
	var errs []error

	for i := len(s.ExecutedSteps) - 1; i >= 0; i-- {
		id := s.ExecutedSteps[i]
		step, ok := s.step(id)
		if !ok || step.Rollback == nil {
			continue
		}

		if err := step.Rollback(ctx, s.RollbackData[id]); err != nil {
			rbErr := apperrors.SagaRollbackFailureError(id, err)
			errs = append(errs, rbErr)
			o.countCompensation("failed")
			slog.ErrorContext(ctx, "Saga compensation failed, manual intervention required", "step_id", id, "step", step.Name, "error", err)
			continue
		}
		compensated = append(compensated, id)
		o.countCompensation("ok")
	}
	return compensated, errs
}

func (o *Orchestrator) finish(ctx context.Context, s *Saga, eventType, outcome string, result Result, payload map[string]any) {
	if o.metrics != nil {
		o.metrics.Outcomes.WithLabelValues(outcome).Inc()
		o.metrics.Duration.Observe(result.Duration.Seconds())
	}

	event := domain.Event{
		ID:         uuid.New(),
		EventType:  eventType,
		EntityType: domain.EntitySaga,
		EntityID:   s.SagaID,
		TenantID:   s.TenantID,
		UserID:     s.UserID,
		Payload:    payload,
		Metadata:   correlation.Metadata(ctx),
		Timestamp:  o.clock.Now(),
	}
	if err := o.events.AppendEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "Failed to append saga event", "event_type", eventType, "error", err)
	}
}

func (o *Orchestrator) countCompensation(result string) {
	if o.metrics != nil {
		o.metrics.Compensations.WithLabelValues(result).Inc()
	}
}
