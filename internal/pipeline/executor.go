package pipeline

import (
	"context"
	"errors"
	"time"

	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/state"
)

// PhaseFunc performs one phase for one item. It mutates the item in place on
// success and must not commit partial results on failure; the orchestrator
// persists the item only after the function returns.
type PhaseFunc func(context.Context, *state.ItemState) error

// executeItemPhase runs one phase for one item behind the resource gate.
// Phase failures are recorded on the item and do not surface as errors; the
// returned error is non-nil only for cancellation or a fatal store failure.
func (o *Orchestrator) executeItemPhase(ctx context.Context, run *runState, phase state.Phase, id string, fn PhaseFunc) error {
	itemCtx := services.WithPhase(services.WithItemID(ctx, id), phase.String())
	logger := logging.WithContext(itemCtx, o.logger)

	class := classFor(phase)
	if err := o.gate.Acquire(ctx, class); err != nil {
		return err
	}
	defer o.gate.Release(class)

	item, ok := o.store.Get(id)
	if !ok {
		logger.Warn("item disappeared before phase execution",
			logging.String(logging.FieldEventType, "item_missing"))
		return nil
	}

	start := time.Now()
	err := fn(itemCtx, item)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Debug("phase interrupted by shutdown")
			return err
		}
		if services.IsFatal(err) {
			return err
		}
		run.stats.RecordAttempt(phase, false, duration)
		logger.Error("phase failed",
			logging.String(logging.FieldEventType, "phase_failure"),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Duration("phase_duration", duration),
			logging.Error(err),
		)
		if storeErr := o.store.SetFailure(id, phase, err.Error()); storeErr != nil {
			return storeErr
		}
		return nil
	}

	item.Progress = phase
	if item.FailedPhase == phase {
		item.ClearFailure()
	}
	if err := o.store.Upsert(item); err != nil {
		return err
	}
	run.stats.RecordAttempt(phase, true, duration)
	logger.Info("phase completed",
		logging.String(logging.FieldEventType, "phase_complete"),
		logging.Duration("phase_duration", duration),
	)
	return nil
}
