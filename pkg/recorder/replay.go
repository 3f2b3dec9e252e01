package recorder

import (
	"context"
	"time"

	"github.com/tracecore/tracecore/pkg/store"
)

// ReplayStep appends a step that reproduces an original step verbatim,
// marking it as replayed via ReplayOf, for use by pkg/replay when
// constructing a replay trace (SPEC_FULL.md §4.3). It bypasses redaction
// (the original step was already redacted when first recorded) and scoped
// acquisition (there is no live action being wrapped here), but otherwise
// participates in the same sequential numbering, snapshot-before-step
// ordering, and step-limit enforcement as a normally recorded step.
func (r *Recorder) ReplayStep(ctx context.Context, original store.Step, snap *store.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateRecording {
		if r.cfg.Strict {
			return ErrNoActiveRun
		}
		return nil
	}
	if r.stepCounter >= r.cfg.MaxSteps {
		return r.truncateLocked(ctx)
	}

	r.stepCounter++
	stepID := r.stepCounter

	var stateRef, diffRef string
	if snap != nil {
		s := *snap
		s.StepID = stepID
		if err := r.store.WriteSnapshot(ctx, r.runDir, stepID, s); err != nil {
			return err
		}
		stateRef = snapshotRef(stepID)
		if r.lastSnap != nil {
			diff := diffSnapshots(r.lastSnap, &s)
			if len(diff.Changes) > 0 {
				if err := r.store.WriteDiff(ctx, r.runDir, stepID, diff); err != nil {
					return err
				}
				diffRef = diffRefPath(stepID)
			}
		}
		r.lastSnap = &s
	}

	step := store.Step{
		StepID:     stepID,
		Timestamp:  time.Now().UnixMilli(),
		Phase:      original.Phase,
		Input:      original.Input,
		Output:     original.Output,
		StateRef:   stateRef,
		DiffRef:    diffRef,
		Status:     original.Status,
		DurationMS: original.DurationMS,
		ReplayOf:   original.StepID,
	}
	stepsRecorded.WithLabelValues(string(step.Phase), string(step.Status)).Inc()
	return r.store.AppendStep(ctx, r.runDir, step)
}
