package service

import (
	"context"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/scholarfund-api/pkg/errors"
)

// sagaStep is one forward action in a multi-aggregate write sequence,
// paired with the action that undoes it. Compensate may be nil when the
// step leaves nothing to undo (or when leaving its effect in place is the
// documented behaviour, as with the fee-entry approval).
type sagaStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// runSaga executes steps in order. When a step fails, the compensations
// of all completed steps run in reverse. If every compensation succeeds
// the step's own error is returned; if any compensation fails the result
// is ErrCompensationFailed wrapping the original cause, since the stores
// are now inconsistent and need manual reconciliation.
func runSaga(ctx context.Context, logger *zap.Logger, steps []sagaStep) error {
	for i, step := range steps {
		err := step.run(ctx)
		if err == nil {
			continue
		}
		logger.Sugar().Warnw("saga step failed, compensating",
			"step", step.name, "completed_steps", i, "error", err)

		for j := i - 1; j >= 0; j-- {
			comp := steps[j]
			if comp.compensate == nil {
				continue
			}
			if compErr := comp.compensate(ctx); compErr != nil {
				logger.Sugar().Errorw("saga compensation failed",
					"step", comp.name, "original_error", err, "error", compErr)
				return appErrors.Wrap(err, appErrors.ErrCompensationFailed.Code,
					appErrors.ErrCompensationFailed.Status,
					appErrors.ErrCompensationFailed.Message)
			}
			logger.Sugar().Infow("saga step compensated", "step", comp.name)
		}
		return err
	}
	return nil
}
