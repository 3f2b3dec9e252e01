package analysis

import (
	"fmt"

	"github.com/tracecore/tracecore/pkg/store"
)

// FindRootCause locates the first step with status=error and its up-to-three
// preceding causal chain, per SPEC_FULL.md §4.4. It returns nil if no step
// errored.
func FindRootCause(steps []store.Step) *RootCause {
	for i, s := range steps {
		if s.Status != store.StatusError {
			continue
		}
		var chain []int
		for j := i - 1; j >= 0 && len(chain) < 3; j-- {
			chain = append([]int{steps[j].StepID}, chain...)
		}
		return &RootCause{
			FailureStepID: s.StepID,
			CausalChain:   chain,
			Confidence:    0.8,
			Description:   fmt.Sprintf("step %d failed; preceded by steps %v", s.StepID, chain),
		}
	}
	return nil
}
