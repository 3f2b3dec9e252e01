package analysis

import (
	"reflect"

	"github.com/tracecore/tracecore/pkg/store"
)

// Align produces an ordered alignment between runs A and B, iterating by
// index up to max(|A|,|B|), per SPEC_FULL.md §4.4.
func Align(a, b []store.Step) []AlignmentEntry {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]AlignmentEntry, n)
	for i := 0; i < n; i++ {
		var sa, sb *store.Step
		if i < len(a) {
			sa = &a[i]
		}
		if i < len(b) {
			sb = &b[i]
		}
		out[i] = AlignmentEntry{Index: i, StepA: sa, StepB: sb, Kind: classify(sa, sb)}
	}
	return out
}

func classify(sa, sb *store.Step) AlignmentKind {
	if sa == nil || sb == nil {
		return AlignMismatch
	}
	if sa.Phase != sb.Phase {
		return AlignMismatch
	}
	if reflect.DeepEqual(sa.Input, sb.Input) {
		return AlignExact
	}
	return AlignPhase
}

// DivergencePoint returns the step identifier, from run A, of the first
// index at which input or output payloads differ by structural equality.
// If lengths differ but all shared positions are identical, it returns the
// last shared step identifier from A instead. The second return value is
// false when the runs have no divergence at all (including both empty).
func DivergencePoint(a, b []store.Step) (int, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if !reflect.DeepEqual(a[i].Input, b[i].Input) || !reflect.DeepEqual(a[i].Output, b[i].Output) {
			return a[i].StepID, true
		}
	}
	if len(a) != len(b) && n > 0 {
		return a[n-1].StepID, true
	}
	return 0, false
}
