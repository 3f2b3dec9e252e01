package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracecore/tracecore/internal/redact"
	"github.com/tracecore/tracecore/pkg/store"
)

// StepScope is the mutable, scoped context for one open step. Per
// SPEC_FULL.md §4.2, the step is assigned its sequential identifier only
// once the scope closes; I/O captured during the scope is keyed by a
// process-local pending handle until then.
type StepScope struct {
	rec    *Recorder
	ctx    context.Context
	phase  store.Phase
	input  map[string]any
	output map[string]any
	status store.Status
	handle string
	start  time.Time
	span   trace.Span
	noop   bool
	closed bool
	bufIO  map[store.Stream][]byte
}

// SetOutput records a key/value pair in the step's output payload.
func (s *StepScope) SetOutput(key string, value any) {
	if s.noop {
		return
	}
	s.output[key] = value
}

// SetStatus overrides the step's status ahead of Close. Close still forces
// status=error on a non-nil error regardless of what was set here.
func (s *StepScope) SetStatus(status store.Status) {
	if s.noop {
		return
	}
	s.status = status
}

// CaptureIO attributes bytes to this step's pending handle. Calling it
// after Close has already run discards the bytes and increments the
// recorder_discarded_io_total counter, per the concurrent-step-suppression
// rule in SPEC_FULL.md §4.2.
func (s *StepScope) CaptureIO(stream store.Stream, data []byte) {
	if s.noop || len(data) == 0 {
		return
	}
	if s.closed {
		discardedIO.Add(float64(len(data)))
		return
	}
	_ = s.rec.limiter.WaitN(s.ctx, min(len(data), s.rec.limiter.Burst()))

	if pio, ok := s.rec.store.(store.PendingIOStore); ok {
		if err := pio.CapturePendingIO(s.ctx, s.rec.runDir, s.handle, stream, data); err == nil {
			return
		}
	}
	if s.bufIO == nil {
		s.bufIO = make(map[store.Stream][]byte)
	}
	s.bufIO[stream] = append(s.bufIO[stream], data...)
}

// Close finalizes the step: on err == nil it records status=ok (unless
// SetStatus overrode it), otherwise it forces status=error with the error
// message merged into the output payload. Either way it assigns the step
// its sequential identifier, redacts payloads, writes the snapshot and
// diff, commits pending I/O, and appends the step record.
func (s *StepScope) Close(err error) error {
	if s.noop || s.closed {
		return nil
	}
	s.closed = true
	defer s.span.End()

	rec := s.rec
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.openScope == s {
		rec.openScope = nil
	}

	if err != nil {
		s.status = store.StatusError
		s.output["error"] = err.Error()
	}

	if rec.state != stateRecording {
		return nil
	}

	if rec.stepCounter >= rec.cfg.MaxSteps {
		return rec.truncateLocked(s.ctx)
	}

	rec.stepCounter++
	stepID := rec.stepCounter

	safeInput := rec.redactor.RedactValue(s.input)
	safeOutput := rec.redactor.RedactValue(s.output)

	snap := rec.buildSnapshotLocked(stepID)
	var stateRef, diffRef string
	if snap != nil {
		if err := rec.writeSnapshotLocked(s.ctx, stepID, *snap); err != nil {
			return err
		}
		stateRef = snapshotRef(stepID)

		if rec.lastSnap != nil {
			diff := diffSnapshots(rec.lastSnap, snap)
			if len(diff.Changes) > 0 {
				if err := rec.store.WriteDiff(s.ctx, rec.runDir, stepID, diff); err != nil {
					return err
				}
				diffRef = diffRefPath(stepID)
			}
		}
		rec.lastSnap = snap
	}

	if pio, ok := rec.store.(store.PendingIOStore); ok {
		_ = pio.CommitPendingIO(s.ctx, rec.runDir, s.handle, stepID)
	} else {
		for stream, data := range s.bufIO {
			_ = rec.store.CaptureToolIO(s.ctx, rec.runDir, stepID, stream, data)
		}
	}

	durMS := time.Since(s.start).Milliseconds()
	step := store.Step{
		StepID:     stepID,
		Timestamp:  time.Now().UnixMilli(),
		Phase:      s.phase,
		Input:      asMap(safeInput),
		Output:     asMap(safeOutput),
		StateRef:   stateRef,
		DiffRef:    diffRef,
		Status:     s.status,
		DurationMS: &durMS,
	}

	s.span.SetAttributes(
		attribute.String("step.phase", string(s.phase)),
		attribute.String("step.status", string(s.status)),
		attribute.Int64("step.duration_ms", durMS),
	)

	stepsRecorded.WithLabelValues(string(s.phase), string(s.status)).Inc()
	if err := rec.store.AppendStep(s.ctx, rec.runDir, step); err != nil {
		return err
	}

	if s.phase == store.PhaseRetry {
		retriesRecorded.Inc()
	}
	return nil
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func snapshotRef(stepID int) string { return "snapshots/step_" + strconv.Itoa(stepID) + ".json" }
func diffRefPath(stepID int) string { return "diffs/step_" + strconv.Itoa(stepID) + ".diff.json" }

// Step opens a new scoped step context. In idle/sealed state under strict
// mode, Step still returns a usable (no-op) scope whose Close is a no-op,
// so caller code never needs a nil check — the error surfaces separately
// through StepErr when the caller wants it.
func (r *Recorder) Step(ctx context.Context, phase store.Phase, input map[string]any) *StepScope {
	scope, _ := r.step(ctx, phase, input)
	return scope
}

// StepErr is like Step but also returns the lifecycle error a strict-mode
// caller needs to detect NoActiveRun, Sealed, or NestedStep immediately
// rather than discovering it only once Close is called.
func (r *Recorder) StepErr(ctx context.Context, phase store.Phase, input map[string]any) (*StepScope, error) {
	return r.step(ctx, phase, input)
}

func (r *Recorder) step(ctx context.Context, phase store.Phase, input map[string]any) (*StepScope, error) {
	r.mu.Lock()

	if lifecycleErr := r.idleOrSealedError(); lifecycleErr != nil {
		r.mu.Unlock()
		if lifecycleErr == errLenientSkip {
			return noopScope(ctx, phase, input), nil
		}
		return noopScope(ctx, phase, input), lifecycleErr
	}

	if r.openScope != nil {
		r.mu.Unlock()
		if r.cfg.Strict {
			return noopScope(ctx, phase, input), ErrNestedStep
		}
		return noopScope(ctx, phase, input), nil
	}

	spanCtx, span := r.tracer.Start(ctx, "step."+string(phase))

	scope := &StepScope{
		rec:    r,
		ctx:    spanCtx,
		phase:  phase,
		input:  input,
		output: map[string]any{},
		status: store.StatusOK,
		handle: uuid.NewString(),
		start:  time.Now(),
		span:   span,
	}
	r.openScope = scope
	r.mu.Unlock()
	return scope, nil
}

func noopScope(ctx context.Context, phase store.Phase, input map[string]any) *StepScope {
	return &StepScope{ctx: ctx, phase: phase, input: input, output: map[string]any{}, noop: true, closed: true}
}

// buildSnapshotLocked derives the snapshot to attach to stepID from
// whatever memory is currently staged via UpdateMemory. Per the resolved
// Open Question (i), context-token count is always computed, never left
// absent.
func (r *Recorder) buildSnapshotLocked(stepID int) *store.Snapshot {
	if !r.pendingMemSet && r.lastSnap == nil {
		return &store.Snapshot{StepID: stepID, Memory: nil, ContextTokens: 0, ToolsState: map[string]any{}}
	}
	memory := r.pendingMem
	if memory == nil && r.lastSnap != nil {
		memory = r.lastSnap.Memory
	}
	tokens := estimateTokens(memory)
	return &store.Snapshot{
		StepID:        stepID,
		Memory:        memory,
		ContextTokens: tokens,
		ToolsState:    map[string]any{},
	}
}

// estimateTokens computes a wall-clock-derived, deterministic stand-in for
// a real tokenizer: four characters per token, summed over every memory
// entry's string-shaped fields. Good enough for cross-run comparison, which
// only needs a present, monotonic-with-content count, not model fidelity.
func estimateTokens(memory []map[string]any) int {
	total := 0
	for _, entry := range memory {
		for _, v := range entry {
			if s, ok := v.(string); ok {
				total += (len(s) + 3) / 4
			}
		}
	}
	return total
}

func (r *Recorder) writeSnapshotLocked(ctx context.Context, stepID int, snap store.Snapshot) error {
	snap.Memory = redactMemory(r.redactor, snap.Memory)
	snap.ToolsState = asMap(r.redactor.RedactValue(snap.ToolsState))

	if raw, err := json.Marshal(snap); err == nil && int64(len(raw)) > r.cfg.MaxSnapshotBytes {
		return &IoError{Op: "write_snapshot", Err: fmt.Errorf("snapshot for step %d exceeds max size %d bytes", stepID, r.cfg.MaxSnapshotBytes)}
	}
	return r.store.WriteSnapshot(ctx, r.runDir, stepID, snap)
}

func redactMemory(red *redact.Redactor, memory []map[string]any) []map[string]any {
	if memory == nil {
		return nil
	}
	out := make([]map[string]any, len(memory))
	for i, m := range memory {
		out[i] = asMap(red.RedactValue(m))
	}
	return out
}

// truncateLocked implements the step-ceiling limit from SPEC_FULL.md §4.2:
// write a terminate step, seal with truncated=true, and reject further
// instrumentation.
// truncateLocked seals the run once cfg.MaxSteps has already been reached,
// without writing anything for the step that triggered it: total steps
// persisted never exceeds MaxSteps.
func (r *Recorder) truncateLocked(ctx context.Context) error {
	log.Printf("recorder: step limit reached for run %s, truncating", r.runID)
	runsTruncated.Inc()

	if err := r.store.Seal(ctx, r.runDir, store.RunStatusLimitExceeded, "limit_exceeded", true); err != nil {
		return err
	}
	_ = r.locker.Release(ctx, r.runID)
	r.state = stateSealed
	return ErrLimitExceeded
}
