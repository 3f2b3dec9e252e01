package recorder

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tracecore/tracecore/pkg/store"
)

// ToolFunc is the shape a tool implementation must match to be wrapped by
// Recorder.Tool.
type ToolFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// RetryPolicy configures the retry behavior of a wrapped tool call.
// MaxAttempts <= 1 disables retrying: a single failure is recorded as an
// error tool step.
type RetryPolicy struct {
	MaxAttempts int
}

// Tool wraps fn so the call is recorded per SPEC_FULL.md §4.2: a failed
// attempt before the last emits exactly one `retry` phase step carrying
// the attempt number and failure cause, with exponential backoff before
// the next attempt; the call's outcome (eventual success, or exhaustion
// after policy.MaxAttempts failures) emits exactly one `tool` phase step.
// A policy of MaxAttempts=2 that fails three times therefore emits two
// `retry` steps followed by one `tool` step with status=error — never an
// extra `tool` step per failed attempt.
func (r *Recorder) Tool(name string, policy RetryPolicy, fn ToolFunc) ToolFunc {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		input := map[string]any{"tool": name, "args": args}
		bo := backoff.NewExponentialBackOff()

		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			result, err := fn(ctx, args)
			isFinal := attempt >= maxAttempts

			if err == nil || isFinal {
				attemptInput := input
				if attempt > 1 {
					attemptInput = map[string]any{"tool": name, "args": args, "attempt": attempt, "max_attempts": maxAttempts}
				}
				scope := r.Step(ctx, store.PhaseTool, attemptInput)
				if err == nil {
					scope.SetOutput("result", result)
					scope.SetStatus(store.StatusOK)
					_ = scope.Close(nil)
					return result, nil
				}
				scope.SetStatus(store.StatusError)
				_ = scope.Close(err)
				return nil, err
			}

			lastErr = err
			retryScope := r.Step(ctx, store.PhaseRetry, map[string]any{
				"tool": name, "attempt": attempt, "max_attempts": maxAttempts,
			})
			retryScope.SetOutput("error", err.Error())
			retryScope.SetStatus(store.StatusRetry)
			_ = retryScope.Close(nil)

			if !sleepBackoff(ctx, bo) {
				break
			}
		}
		return nil, lastErr
	}
}

// sleepBackoff waits for the next exponential backoff interval, returning
// false if bo reports it should stop retrying (backoff.Stop) or ctx is
// canceled first.
func sleepBackoff(ctx context.Context, bo *backoff.ExponentialBackOff) bool {
	d := bo.NextBackOff()
	if d == backoff.Stop {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
