package recorder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracecore/tracecore/pkg/store"
)

func newTestRecorder(t *testing.T, strict bool) (*Recorder, *store.FileStore) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Strict = strict
	cfg.Store.BaseDir = t.TempDir()
	st := store.NewFileStore()
	rec, err := New(cfg, st, NewLocalLock())
	require.NoError(t, err)
	return rec, st
}

func TestRecorder_InitStepStop(t *testing.T) {
	rec, st := newTestRecorder(t, true)
	ctx := context.Background()

	runID, err := rec.Init(ctx, InitMeta{AgentVersion: "v1", LLM: "gpt-4-mock"})
	require.NoError(t, err)

	scope := rec.Step(ctx, store.PhaseObserve, map[string]any{"n": 1})
	scope.SetOutput("ok", true)
	require.NoError(t, scope.Close(nil))

	require.NoError(t, rec.Stop(ctx, "success"))

	runDir := rec.cfg.Store.BaseDir + "/" + runID
	run, err := st.Load(ctx, runDir)
	require.NoError(t, err)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, store.StatusOK, run.Steps[0].Status)
	assert.Equal(t, store.RunStatusSuccess, run.Meta.Status)
}

func TestRecorder_SecondInitWithoutStopIsAlreadyActiveInStrictMode(t *testing.T) {
	rec, _ := newTestRecorder(t, true)
	ctx := context.Background()

	_, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)

	_, err = rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestRecorder_SecondInitWithoutStopIsImplicitRestartInLenientMode(t *testing.T) {
	rec, _ := newTestRecorder(t, false)
	ctx := context.Background()

	firstRunID, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)

	secondRunID, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)
	assert.NotEqual(t, firstRunID, secondRunID)
}

func TestRecorder_StepInIdleStrictModeFailsNoActiveRun(t *testing.T) {
	rec, _ := newTestRecorder(t, true)
	ctx := context.Background()

	_, err := rec.StepErr(ctx, store.PhaseObserve, map[string]any{})
	assert.ErrorIs(t, err, ErrNoActiveRun)
}

func TestRecorder_StepInIdleLenientModeReturnsUsableNoopScope(t *testing.T) {
	rec, _ := newTestRecorder(t, false)
	ctx := context.Background()

	scope := rec.Step(ctx, store.PhaseObserve, map[string]any{})
	scope.SetOutput("x", 1)
	assert.NoError(t, scope.Close(nil))
}

func TestRecorder_NestedStepIsRejectedInStrictMode(t *testing.T) {
	rec, _ := newTestRecorder(t, true)
	ctx := context.Background()
	_, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)

	outer := rec.Step(ctx, store.PhaseObserve, map[string]any{})
	_, err = rec.StepErr(ctx, store.PhaseObserve, map[string]any{})
	assert.ErrorIs(t, err, ErrNestedStep)

	require.NoError(t, outer.Close(nil))
}

func TestRecorder_RedactsSecretsBeforeWriting(t *testing.T) {
	rec, st := newTestRecorder(t, true)
	ctx := context.Background()
	runID, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)

	scope := rec.Step(ctx, store.PhaseTool, map[string]any{
		"api_key": "sk-abcdefghijklmnopqrstuvwxyz123456",
	})
	scope.SetOutput("token", "ghp_abcdefghijklmnopqrstuvwxyz")
	require.NoError(t, scope.Close(nil))
	require.NoError(t, rec.Stop(ctx, "success"))

	runDir := rec.cfg.Store.BaseDir + "/" + runID
	run, err := st.Load(ctx, runDir)
	require.NoError(t, err)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, "********", run.Steps[0].Input["api_key"])
	assert.Equal(t, "********", run.Steps[0].Output["token"])
}

func TestRecorder_ScopeExitOnErrorRecordsErrorStatus(t *testing.T) {
	rec, st := newTestRecorder(t, true)
	ctx := context.Background()
	runID, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)

	scope := rec.Step(ctx, store.PhaseTool, map[string]any{})
	boom := errors.New("boom")
	require.NoError(t, scope.Close(boom))
	require.NoError(t, rec.Stop(ctx, "failure"))

	runDir := rec.cfg.Store.BaseDir + "/" + runID
	run, err := st.Load(ctx, runDir)
	require.NoError(t, err)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, store.StatusError, run.Steps[0].Status)
	assert.Equal(t, "boom", run.Steps[0].Output["error"])
}

func TestRecorder_StepLimitTruncatesRun(t *testing.T) {
	rec, st := newTestRecorder(t, true)
	rec.cfg.MaxSteps = 2
	ctx := context.Background()
	runID, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		scope := rec.Step(ctx, store.PhaseObserve, map[string]any{"i": i})
		_ = scope.Close(nil)
	}

	runDir := rec.cfg.Store.BaseDir + "/" + runID
	run, err := st.Load(ctx, runDir)
	require.NoError(t, err)
	assert.True(t, run.Meta.Truncated)
	assert.Equal(t, store.RunStatusLimitExceeded, run.Meta.Status)
	require.Len(t, run.Steps, 2)
}

func TestRecorder_ToolRetryExhaustionEmitsRetryThenErrorSteps(t *testing.T) {
	rec, st := newTestRecorder(t, true)
	ctx := context.Background()
	runID, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)

	calls := 0
	failing := rec.Tool("search", RetryPolicy{MaxAttempts: 3}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		calls++
		return nil, errors.New("unavailable")
	})

	_, err = failing(ctx, map[string]any{"q": "x"})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	require.NoError(t, rec.Stop(ctx, "failure"))

	runDir := rec.cfg.Store.BaseDir + "/" + runID
	run, err := st.Load(ctx, runDir)
	require.NoError(t, err)
	require.Len(t, run.Steps, 3) // retry, retry, final tool=error
	assert.Equal(t, store.PhaseRetry, run.Steps[0].Phase)
	assert.Equal(t, store.PhaseRetry, run.Steps[1].Phase)
	assert.Equal(t, store.PhaseTool, run.Steps[2].Phase)
	assert.Equal(t, store.StatusError, run.Steps[2].Status)
}

func TestRecorder_ToolSucceedsAfterTransientFailure(t *testing.T) {
	rec, st := newTestRecorder(t, true)
	ctx := context.Background()
	runID, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)

	calls := 0
	flaky := rec.Tool("search", RetryPolicy{MaxAttempts: 3}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("timeout")
		}
		return map[string]any{"hits": 3}, nil
	})

	result, err := flaky(ctx, map[string]any{"q": "x"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), toFloat(result["hits"]))
	require.NoError(t, rec.Stop(ctx, "success"))

	runDir := rec.cfg.Store.BaseDir + "/" + runID
	run, err := st.Load(ctx, runDir)
	require.NoError(t, err)
	require.Len(t, run.Steps, 2) // retry, tool=ok
	assert.Equal(t, store.PhaseRetry, run.Steps[0].Phase)
	assert.Equal(t, store.PhaseTool, run.Steps[1].Phase)
	assert.Equal(t, store.StatusOK, run.Steps[1].Status)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}

func TestRecorder_ModelWrapperRecordsReasonStep(t *testing.T) {
	rec, st := newTestRecorder(t, true)
	ctx := context.Background()
	runID, err := rec.Init(ctx, InitMeta{AgentVersion: "v1"})
	require.NoError(t, err)

	wrapped := WrapModel(rec, func(ctx context.Context, prompt string) (string, error) {
		return "hello " + prompt, nil
	})

	resp, err := wrapped(ctx, "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp)
	require.NoError(t, rec.Stop(ctx, "success"))

	runDir := rec.cfg.Store.BaseDir + "/" + runID
	run, err := st.Load(ctx, runDir)
	require.NoError(t, err)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, store.PhaseReason, run.Steps[0].Phase)
}
