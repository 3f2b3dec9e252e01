// Package analysis is the pure, reproducible analysis kernel: step
// alignment, divergence localization, invariant checks, semantic labeling,
// and root-cause/counterfactual construction over one or two recorded
// runs, per SPEC_FULL.md §4.4. Nothing in this package mutates a run's
// artifacts except Counterfactual, which only ever writes a brand new run
// directory.
package analysis

import "github.com/tracecore/tracecore/pkg/store"

// AlignmentKind classifies one position in a two-run alignment.
type AlignmentKind string

const (
	AlignExact    AlignmentKind = "exact"
	AlignPhase    AlignmentKind = "phase"
	AlignMismatch AlignmentKind = "mismatch"
)

// AlignmentEntry is one position in the ordered alignment between two runs.
type AlignmentEntry struct {
	Index int           `json:"index"`
	Kind  AlignmentKind `json:"kind"`
	StepA *store.Step   `json:"step_a,omitempty"`
	StepB *store.Step   `json:"step_b,omitempty"`
}

// CheckResult is the outcome of one invariant check.
type CheckResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail"`
}

// Label is a heuristic semantic tag attached to a step identifier.
type Label struct {
	StepID int    `json:"step_id"`
	Tag    string `json:"tag"`
}

// RootCause names the first failing step and its immediate causal chain.
type RootCause struct {
	FailureStepID int     `json:"failure_step_id"`
	CausalChain   []int   `json:"causal_chain"`
	Confidence    float64 `json:"confidence"`
	Description   string  `json:"description"`
}
