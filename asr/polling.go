package asr

import (
	"context"
	"time"

	"github.com/skillsenselab/asrkit/errors"
	"github.com/skillsenselab/asrkit/logger"
)

// pollTask drives a submitted task to a terminal state. The interval is
// constant (the providers rate-limit flatly; backoff buys nothing) and the
// budget is tracked as monotonic elapsed time, so repeated status calls are
// never mistaken for progress. Cancellation stops polling without cancelling
// the remote task; once submitted it is fire-and-forget.
func (r *Recognizer) pollTask(ctx context.Context, engine URLEngine, req Request, handle *TaskHandle) (*Transcript, error) {
	start := time.Now()
	polls := 0

	for {
		result, err := engine.Poll(ctx, handle.ID)
		if err != nil {
			return nil, err
		}
		polls++

		switch result.Status {
		case TaskSucceeded:
			if err := handle.Advance(TaskSucceeded); err != nil {
				return nil, err
			}
			return engine.Fetch(ctx, result.ResultURL)

		case TaskFailed:
			if err := handle.Advance(TaskFailed); err != nil {
				return nil, err
			}
			return nil, errors.RecognitionFailed(req.Engine, result.Message)

		default:
			if handle.Status == TaskSubmitted {
				if err := handle.Advance(TaskRunning); err != nil {
					return nil, err
				}
			}
		}

		// The budget check is forward-looking: when the next poll could not
		// happen inside the budget, the wait is already lost.
		elapsed := time.Since(start)
		if elapsed+r.pollInterval > r.maxWait {
			_ = handle.Advance(TaskTimedOut)
			r.log.Warn("task polling budget exhausted", logger.Fields(
				logger.FieldEngine, req.Engine,
				logger.FieldTaskID, handle.ID,
				"polls", polls,
				"elapsed", elapsed.String(),
			))
			return nil, errors.RecognitionTimeout(req.Engine, elapsed)
		}

		timer := time.NewTimer(r.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
