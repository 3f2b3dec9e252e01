// Package recorder is the sole writer during a run: it enforces step
// ordering, redaction, limits, and lifecycle on top of pkg/store.
package recorder

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tracecore/tracecore/internal/redact"
	"github.com/tracecore/tracecore/internal/telemetry"
	"github.com/tracecore/tracecore/pkg/store"
)

type lifecycleState int

const (
	stateIdle lifecycleState = iota
	stateRecording
	stateSealed
)

// InitMeta describes a run at the moment Init starts it.
type InitMeta struct {
	AgentVersion string
	LLM          string
	Temperature  float64
	Tools        []string
	Seed         int64
	Tags         []string
}

// Recorder is the run handle SPEC_FULL.md describes: an explicit object
// returned from construction rather than hidden process-global state,
// carrying its own idle/recording/sealed lifecycle so a single Recorder can
// be reused across successive runs.
type Recorder struct {
	cfg      Config
	store    store.Store
	locker   Locker
	redactor *redact.Redactor
	limiter  *rate.Limiter
	tracer   trace.Tracer

	mu          sync.Mutex
	state       lifecycleState
	runDir      string
	runID       string
	meta        store.Meta
	stepCounter int
	openScope   *StepScope
	lastSnap    *store.Snapshot
	pendingMem  []map[string]any
	pendingMemSet bool
}

// New builds an idle Recorder against the given store and locker. Pass nil
// for locker to use an in-process LocalLock (the single-process default).
func New(cfg Config, st store.Store, locker Locker) (*Recorder, error) {
	red, err := redact.New(redact.Config{
		ValuePatterns: cfg.Redaction.Patterns,
		KeyPattern:    cfg.Redaction.KeyPattern,
	})
	if err != nil {
		return nil, fmt.Errorf("recorder: build redactor: %w", err)
	}
	if locker == nil {
		locker = NewLocalLock()
	}
	return &Recorder{
		cfg:      cfg,
		store:    st,
		locker:   locker,
		redactor: red,
		limiter:  rate.NewLimiter(rate.Limit(1<<20), 1<<20), // 1MiB/s sustained, 1MiB burst
		tracer:   telemetry.Tracer(),
		state:    stateIdle,
	}, nil
}

// Init starts a new run, transitioning idle -> recording. Per
// SPEC_FULL.md §4.2, a second Init without Stop is AlreadyActive in strict
// mode, and in lenient mode implicitly stops the prior run first.
func (r *Recorder) Init(ctx context.Context, meta InitMeta) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateRecording {
		msg := fmt.Sprintf("run %s already active", r.runID)
		if r.cfg.Strict {
			return "", ErrAlreadyActive
		}
		log.Printf("recorder: warning: %s, stopping it implicitly", msg)
		if err := r.stopLocked(ctx, "restarted"); err != nil {
			return "", err
		}
	}

	runID := "run_" + uuid.NewString()
	base := r.cfg.Store.BaseDir
	if base == "" {
		base = "traces"
	}
	runDir := filepath.Join(base, runID)

	if err := r.locker.Acquire(ctx, runID); err != nil {
		return "", err
	}

	m := store.Meta{
		RunID:        runID,
		AgentVersion: meta.AgentVersion,
		LLM:          meta.LLM,
		Temperature:  meta.Temperature,
		Tools:        meta.Tools,
		Seed:         meta.Seed,
		CreatedAt:    time.Now().UTC(),
		Tags:         meta.Tags,
	}
	if err := r.store.Create(ctx, runDir, m); err != nil {
		_ = r.locker.Release(ctx, runID)
		return "", err
	}

	r.runID = runID
	r.runDir = runDir
	r.meta = m
	r.stepCounter = 0
	r.lastSnap = nil
	r.pendingMem = nil
	r.pendingMemSet = false
	r.state = stateRecording

	log.Printf("recorder: started run %s", runID)
	return runID, nil
}

// UpdateMemory stages the memory entries attached to the next step's
// snapshot.
func (r *Recorder) UpdateMemory(memory []map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingMem = memory
	r.pendingMemSet = true
}

// Stop seals the run, transitioning recording -> sealed.
func (r *Recorder) Stop(ctx context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(ctx, reason)
}

func (r *Recorder) stopLocked(ctx context.Context, reason string) error {
	if r.state != stateRecording {
		if r.cfg.Strict {
			return ErrNoActiveRun
		}
		return nil
	}

	status := store.RunStatusSuccess
	switch reason {
	case "", "success":
		status = store.RunStatusSuccess
		reason = "success"
	case "limit_exceeded":
		status = store.RunStatusLimitExceeded
	case "aborted":
		status = store.RunStatusAborted
	default:
		status = store.RunStatusFailure
	}

	truncated := status == store.RunStatusLimitExceeded
	if err := r.store.Seal(ctx, r.runDir, status, reason, truncated); err != nil {
		return err
	}
	_ = r.locker.Release(ctx, r.runID)
	r.state = stateSealed
	log.Printf("recorder: stopped run %s (%s)", r.runID, reason)
	return nil
}

// idleOrSealedError reports the right lifecycle error (or nil in lenient
// mode) for an instrumentation call made outside the recording state.
func (r *Recorder) idleOrSealedError() error {
	switch r.state {
	case stateRecording:
		return nil
	case stateSealed:
		if r.cfg.Strict {
			return ErrSealed
		}
		return errLenientSkip
	default:
		if r.cfg.Strict {
			return ErrNoActiveRun
		}
		return errLenientSkip
	}
}

// errLenientSkip is a sentinel used internally to short-circuit
// instrumentation calls in lenient mode without surfacing an error to the
// caller.
var errLenientSkip = fmt.Errorf("recorder: lenient no-op")
