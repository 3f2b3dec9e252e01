// Package replay reproduces a recorded agent run from its artifacts with
// zero external effects, per SPEC_FULL.md §4.3. It presents an agent under
// replay with substitute model and tool endpoints that consume the original
// step sequence in order rather than invoking anything real, and it detects
// divergence when the agent's requests no longer line up with what was
// recorded.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tracecore/tracecore/pkg/recorder"
	"github.com/tracecore/tracecore/pkg/store"
)

// errPhaseMismatch is internal: advance found a consumable step but not of
// the phase the caller asked for.
var errPhaseMismatch = errors.New("replay: next consumable step is a different phase")

// Engine drives one replay of an original run. It is not safe for use by
// more than one agent goroutine at a time; the cursor is a single linear
// position into the original step sequence, matching the single-writer
// model the recorder itself uses for live recording.
type Engine struct {
	mu sync.Mutex

	st          store.Store
	originalDir string
	steps       []store.Step
	cursor      int

	rec         *recorder.Recorder
	divergences []Divergence
}

// New builds an Engine over original (already loaded via st.Load) that
// writes its replay trace through rec, an already-Init'd secondary
// recorder.
func New(st store.Store, original *store.Run, rec *recorder.Recorder) *Engine {
	return &Engine{
		st:          st,
		originalDir: original.Dir,
		steps:       original.Steps,
		rec:         rec,
	}
}

// Model presents the recorded model output for the next `reason` step to
// the agent under replay, in place of invoking a real model. It never
// returns a nil output map on success.
func (e *Engine) Model(ctx context.Context, prompt map[string]any) (map[string]any, error) {
	e.mu.Lock()
	step, err := e.advance(store.PhaseReason)
	e.mu.Unlock()

	if err == ErrCursorExhausted {
		e.recordDivergence(Divergence{Kind: "missing_step", Detail: "agent requested a model call with no recorded reason step remaining"})
		return nil, ErrCursorExhausted
	}
	if err == errPhaseMismatch {
		e.recordDivergence(Divergence{Kind: "output_mismatch", StepID: step.StepID,
			Detail: fmt.Sprintf("agent requested a model call; recorded step %d is phase %s", step.StepID, step.Phase)})
		e.replayStep(ctx, *step)
		return nil, ErrToolMismatch
	}

	e.replayStep(ctx, *step)
	return step.Output, nil
}

// Tool returns a substitute implementation of the named tool, suitable for
// passing wherever the agent under replay expects a callable tool. It
// consumes the next `tool` step and, if the requested name doesn't match
// what was recorded there, records an output_mismatch divergence.
func (e *Engine) Tool(name string) recorder.ToolFunc {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		e.mu.Lock()
		step, err := e.advance(store.PhaseTool)
		e.mu.Unlock()

		if err == ErrCursorExhausted {
			e.recordDivergence(Divergence{Kind: "missing_step", Detail: "agent invoked tool " + name + " with no recorded tool step remaining"})
			return nil, ErrCursorExhausted
		}
		if err == errPhaseMismatch {
			e.recordDivergence(Divergence{Kind: "output_mismatch", StepID: step.StepID,
				Detail: fmt.Sprintf("agent invoked tool %q; recorded step %d is phase %s", name, step.StepID, step.Phase)})
			e.replayStep(ctx, *step)
			return nil, ErrToolMismatch
		}

		if recordedTool, _ := step.Input["tool"].(string); recordedTool != "" && recordedTool != name {
			e.recordDivergence(Divergence{Kind: "output_mismatch", StepID: step.StepID,
				Detail: fmt.Sprintf("agent invoked tool %q; recording expected %q", name, recordedTool)})
			e.replayStep(ctx, *step)
			return nil, ErrToolMismatch
		}

		e.replayStep(ctx, *step)
		return step.Output, nil
	}
}

// advance scans forward from the cursor for the next step of phase want,
// skipping over retry/observe/memory steps (replay-invisible per
// SPEC_FULL.md §4.3). It returns errPhaseMismatch, without losing the
// cursor's forward progress, when it finds a consumable step (reason or
// tool) of the wrong phase, and ErrCursorExhausted when none remain.
func (e *Engine) advance(want store.Phase) (*store.Step, error) {
	for e.cursor < len(e.steps) {
		s := &e.steps[e.cursor]
		e.cursor++
		switch s.Phase {
		case store.PhaseRetry, store.PhaseObserve, store.PhaseMemory, store.PhaseTerminate:
			continue
		case want:
			return s, nil
		default:
			return s, errPhaseMismatch
		}
	}
	return nil, ErrCursorExhausted
}

func (e *Engine) recordDivergence(d Divergence) {
	e.mu.Lock()
	e.divergences = append(e.divergences, d)
	e.mu.Unlock()
}

// replayStep writes the matched original step into the secondary run
// verbatim, loading its snapshot (if any) from the original run directory.
// Errors writing the replay trace are themselves surfaced as divergences
// rather than aborting replay, consistent with "the engine never aborts
// mid-replay".
func (e *Engine) replayStep(ctx context.Context, original store.Step) {
	var snap *store.Snapshot
	if original.StateRef != "" {
		if s, err := e.st.LoadSnapshot(ctx, e.originalDir, original.StepID); err == nil {
			snap = s
		}
	}
	if err := e.rec.ReplayStep(ctx, original, snap); err != nil {
		e.recordDivergence(Divergence{Kind: "output_mismatch", StepID: original.StepID,
			Detail: "failed to write replay trace: " + err.Error()})
	}
}

// Finish closes out the replay: any recorded `reason`/`tool` step never
// reached by the cursor becomes a missing_step divergence, and the
// collected divergences are returned as a Report. Call CompareFinal
// separately once the agent's own final state is available, and merge its
// result into the report's Divergences.
func (e *Engine) Finish(replayRunID string) *Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.steps[e.cursor:] {
		if s.Phase == store.PhaseReason || s.Phase == store.PhaseTool {
			e.divergences = append(e.divergences, Divergence{
				Kind: "missing_step", StepID: s.StepID,
				Detail: "recorded step was never replayed",
			})
		}
	}
	return &Report{ReplayRunID: replayRunID, Divergences: append([]Divergence{}, e.divergences...)}
}

// CompareFinal compares the final-snapshot fields SPEC_FULL.md §4.3 names
// (status, current step counter, goal — carried under Snapshot.ToolsState,
// since those are agent-defined fields rather than ones the store schema
// itself names) and returns a state_mismatch Divergence for each that
// differs.
func CompareFinal(orig, replayed *store.Snapshot) []Divergence {
	if orig == nil || replayed == nil {
		return nil
	}
	var divs []Divergence
	for _, key := range []string{"status", "step_counter", "goal"} {
		ov, rv := orig.ToolsState[key], replayed.ToolsState[key]
		if fmt.Sprint(ov) != fmt.Sprint(rv) {
			divs = append(divs, Divergence{
				Kind:   "state_mismatch",
				StepID: orig.StepID,
				Detail: fmt.Sprintf("final snapshot field %q differs: recorded=%v replayed=%v", key, ov, rv),
			})
		}
	}
	return divs
}
