package assertcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracecore/tracecore/pkg/store"
)

func TestParse_ReadsExpectBlock(t *testing.T) {
	e, err := Parse([]byte("expect:\n  status: success\n  max_steps: 10\n  no_divergence: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "success", e.Expect.Status)
	assert.Equal(t, 10, e.Expect.MaxSteps)
	assert.True(t, e.Expect.NoDivergence)
}

func TestCheck_AllPassWhenExpectationsMet(t *testing.T) {
	run := &store.Run{
		Meta:  store.Meta{Status: store.RunStatusSuccess},
		Steps: []store.Step{{StepID: 1}, {StepID: 2}},
	}
	results := Check(run, Expect{Status: "success", MaxSteps: 5, NoDivergence: true}, 0)
	assert.True(t, AllPass(results))
}

func TestCheck_FailsOnStatusMismatch(t *testing.T) {
	run := &store.Run{Meta: store.Meta{Status: store.RunStatusFailure}}
	results := Check(run, Expect{Status: "success"}, 0)
	assert.False(t, AllPass(results))
}

func TestCheck_FailsWhenDivergencesPresent(t *testing.T) {
	run := &store.Run{Meta: store.Meta{Status: store.RunStatusSuccess}}
	results := Check(run, Expect{NoDivergence: true}, 2)
	assert.False(t, AllPass(results))
}
