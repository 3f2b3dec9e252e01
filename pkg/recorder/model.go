package recorder

import (
	"context"

	"github.com/tracecore/tracecore/pkg/store"
)

// WrapModel wraps fn so every call is recorded as a `reason` phase step
// carrying the prompt as input and the response as output, per
// SPEC_FULL.md §4.2. It is a free function, not a Recorder method, because
// Go methods cannot carry their own type parameters; it is generic over
// any function matching the func(context.Context, P) (R, error) shape, so
// it can wrap any concrete model client without this package depending on
// a specific provider SDK.
func WrapModel[P, R any](r *Recorder, fn func(context.Context, P) (R, error)) func(context.Context, P) (R, error) {
	return func(ctx context.Context, prompt P) (R, error) {
		scope := r.Step(ctx, store.PhaseReason, map[string]any{"prompt": prompt})
		resp, err := fn(ctx, prompt)
		if err != nil {
			scope.SetStatus(store.StatusError)
			_ = scope.Close(err)
			var zero R
			return zero, err
		}
		scope.SetOutput("response", resp)
		scope.SetStatus(store.StatusOK)
		_ = scope.Close(nil)
		return resp, nil
	}
}
