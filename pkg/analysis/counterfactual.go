package analysis

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tracecore/tracecore/pkg/store"
)

// Modification describes the change applied to the pivot step when
// constructing a counterfactual run.
type Modification struct {
	Input  map[string]any
	Output map[string]any
}

// Counterfactual constructs a new run directory tagged "simulation" whose
// step log holds every step strictly before pivotStepID verbatim, plus the
// pivot step with mod applied and status=retry, per SPEC_FULL.md §4.4.
// Snapshots and diffs for the kept, verbatim steps are referenced by path
// into source's own directory rather than copied — the resolved Open
// Question (ii) in SPEC_FULL.md §9 — by rewriting their StateRef/DiffRef
// with a "ref:" prefix pointing at source.Dir. Only the pivot step's
// snapshot, when one can be loaded, is newly written into the
// counterfactual's own directory. source is never written to.
func Counterfactual(ctx context.Context, st store.Store, source *store.Run, pivotStepID int, mod Modification, newRunDir string) (*store.Run, error) {
	var pivot *store.Step
	var before []store.Step
	for i := range source.Steps {
		if source.Steps[i].StepID == pivotStepID {
			p := source.Steps[i]
			pivot = &p
			break
		}
		before = append(before, source.Steps[i])
	}
	if pivot == nil {
		return nil, fmt.Errorf("analysis: pivot step %d not found in source run", pivotStepID)
	}

	meta := source.Meta
	meta.RunID = ""
	meta.Status = ""
	meta.TerminationReason = ""
	meta.Truncated = false
	meta.Tags = append(append([]string{}, meta.Tags...), "simulation", "counterfactual_of:"+source.Meta.RunID)

	if err := st.Create(ctx, newRunDir, meta); err != nil {
		return nil, err
	}

	for _, s := range before {
		kept := s
		kept.StateRef = refIntoSource(source.Dir, kept.StateRef)
		kept.DiffRef = refIntoSource(source.Dir, kept.DiffRef)
		if err := st.AppendStep(ctx, newRunDir, kept); err != nil {
			return nil, err
		}
	}

	modified := *pivot
	if mod.Input != nil {
		modified.Input = mod.Input
	}
	if mod.Output != nil {
		modified.Output = mod.Output
	}
	modified.Status = store.StatusRetry

	if snap, err := st.LoadSnapshot(ctx, source.Dir, pivot.StepID); err == nil && snap != nil {
		if err := st.WriteSnapshot(ctx, newRunDir, pivot.StepID, *snap); err != nil {
			return nil, err
		}
		// modified.StateRef keeps its original "snapshots/step_<id>.json"
		// shape, now resolving against the counterfactual's own directory.
	} else {
		modified.StateRef = refIntoSource(source.Dir, modified.StateRef)
	}
	modified.DiffRef = refIntoSource(source.Dir, modified.DiffRef)

	if err := st.AppendStep(ctx, newRunDir, modified); err != nil {
		return nil, err
	}
	if err := st.Seal(ctx, newRunDir, store.RunStatusAborted, "counterfactual", false); err != nil {
		return nil, err
	}
	return st.Load(ctx, newRunDir)
}

// refIntoSource rewrites a relative artifact path so it resolves against
// sourceDir instead of the counterfactual's own directory. Empty refs stay
// empty.
func refIntoSource(sourceDir, relPath string) string {
	if relPath == "" {
		return ""
	}
	return "ref:" + filepath.Join(sourceDir, relPath)
}
