package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracecore/tracecore/pkg/store"
)

func stepsAB() ([]store.Step, []store.Step) {
	a := []store.Step{
		{StepID: 1, Phase: store.PhaseReason, Input: map[string]any{"prompt": "plan"}, Status: store.StatusOK},
		{StepID: 2, Phase: store.PhaseTool, Input: map[string]any{"tool": "search"}, Status: store.StatusOK},
		{StepID: 3, Phase: store.PhaseReason, Input: map[string]any{"prompt": "answer"}, Status: store.StatusOK},
	}
	b := []store.Step{
		{StepID: 1, Phase: store.PhaseReason, Input: map[string]any{"prompt": "plan"}, Status: store.StatusOK},
		{StepID: 2, Phase: store.PhaseTool, Input: map[string]any{"tool": "write"}, Status: store.StatusOK},
		{StepID: 3, Phase: store.PhaseReason, Input: map[string]any{"prompt": "answer"}, Status: store.StatusOK},
	}
	return a, b
}

func TestAlign_ExactPhaseMismatch(t *testing.T) {
	a, b := stepsAB()
	entries := Align(a, b)
	require.Len(t, entries, 3)
	assert.Equal(t, AlignExact, entries[0].Kind)
	assert.Equal(t, AlignPhase, entries[1].Kind) // same phase, different input
	assert.Equal(t, AlignExact, entries[2].Kind)
}

func TestDivergencePoint_FirstDifferingStep(t *testing.T) {
	a, b := stepsAB()
	stepID, found := DivergencePoint(a, b)
	require.True(t, found)
	assert.Equal(t, 2, stepID)
}

func TestDivergencePoint_LengthMismatchUsesLastShared(t *testing.T) {
	a, _ := stepsAB()
	b := a[:2]
	stepID, found := DivergencePoint(a, b)
	require.True(t, found)
	assert.Equal(t, 2, stepID)
}

func TestRetryCeiling_FailsAboveHalf(t *testing.T) {
	steps := []store.Step{
		{StepID: 1, Phase: store.PhaseTool},
		{StepID: 2, Phase: store.PhaseRetry},
		{StepID: 3, Phase: store.PhaseRetry},
	}
	result := RetryCeiling(steps)
	assert.False(t, result.Pass)
}

func TestToolOrdering_PassesWithoutConstraints(t *testing.T) {
	steps := []store.Step{{StepID: 1, Phase: store.PhaseTool}}
	assert.True(t, ToolOrdering(steps, nil).Pass)
}

func TestRunChecks_PreservesRegistrationOrder(t *testing.T) {
	steps := []store.Step{{StepID: 1, Phase: store.PhaseTool}}
	custom := func(s []store.Step) CheckResult { return CheckResult{Name: "custom", Pass: true} }
	results, err := RunChecks(context.Background(), steps, nil, custom)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "retry_ceiling", results[0].Name)
	assert.Equal(t, "tool_ordering", results[1].Name)
	assert.Equal(t, "custom", results[2].Name)
}

func TestLabels_RetryLoopAndToolClassification(t *testing.T) {
	steps := []store.Step{
		{StepID: 1, Phase: store.PhaseTool, Status: store.StatusRetry},
		{StepID: 2, Phase: store.PhaseTool, Status: store.StatusRetry},
		{StepID: 3, Phase: store.PhaseTool, Input: map[string]any{"tool": "search_docs"}, Status: store.StatusOK},
		{StepID: 4, Phase: store.PhaseTool, Input: map[string]any{"tool": "write_file"}, Status: store.StatusOK},
	}
	labels := Labels(steps)

	var tags []string
	for _, l := range labels {
		tags = append(tags, l.Tag)
	}
	assert.Contains(t, tags, "retry-loop")
	assert.Contains(t, tags, "exploration")
	assert.Contains(t, tags, "commitment")
}

func TestFindRootCause_ReturnsFailureAndChain(t *testing.T) {
	steps := []store.Step{
		{StepID: 1, Status: store.StatusOK},
		{StepID: 2, Status: store.StatusOK},
		{StepID: 3, Status: store.StatusOK},
		{StepID: 4, Status: store.StatusError},
	}
	rc := FindRootCause(steps)
	require.NotNil(t, rc)
	assert.Equal(t, 4, rc.FailureStepID)
	assert.Equal(t, []int{1, 2, 3}, rc.CausalChain)
	assert.Equal(t, 0.8, rc.Confidence)
}

func TestFindRootCause_NilWhenNoError(t *testing.T) {
	steps := []store.Step{{StepID: 1, Status: store.StatusOK}}
	assert.Nil(t, FindRootCause(steps))
}

func TestCounterfactual_KeepsStepsBeforePivotAndTagsSimulation(t *testing.T) {
	ctx := context.Background()
	st := store.NewFileStore()
	base := t.TempDir()

	sourceDir := base + "/source"
	require.NoError(t, st.Create(ctx, sourceDir, store.Meta{RunID: "src", CreatedAt: time.Now().UTC()}))
	require.NoError(t, st.AppendStep(ctx, sourceDir, store.Step{StepID: 1, Phase: store.PhaseReason, Input: map[string]any{"prompt": "a"}, Status: store.StatusOK}))
	require.NoError(t, st.AppendStep(ctx, sourceDir, store.Step{StepID: 2, Phase: store.PhaseTool, Input: map[string]any{"tool": "search"}, Status: store.StatusOK}))
	require.NoError(t, st.Seal(ctx, sourceDir, store.RunStatusSuccess, "success", false))

	source, err := st.Load(ctx, sourceDir)
	require.NoError(t, err)

	cfDir := base + "/cf"
	cf, err := Counterfactual(ctx, st, source, 2, Modification{Input: map[string]any{"tool": "search", "q": "changed"}}, cfDir)
	require.NoError(t, err)

	require.Len(t, cf.Steps, 2)
	assert.Equal(t, 1, cf.Steps[0].StepID)
	assert.Equal(t, 2, cf.Steps[1].StepID)
	assert.Equal(t, store.StatusRetry, cf.Steps[1].Status)
	assert.Equal(t, "changed", cf.Steps[1].Input["q"])
	assert.Contains(t, cf.Meta.Tags, "simulation")
}
