package recorder

import (
	"reflect"

	"github.com/tracecore/tracecore/pkg/store"
)

// diffSnapshots computes the structural delta between two snapshots as an
// ordered list of (path, old, new) triples. No suitable third-party
// structural-diff library exists in the corpus (the one diff dependency
// present, pmezard/go-difflib, is line-based text diffing and does not
// apply to nested map/slice structures), so this walks the snapshot's own
// JSON-shaped representation by hand.
func diffSnapshots(prev, next *store.Snapshot) store.Diff {
	diff := store.Diff{StepID: next.StepID}
	if prev == nil {
		diff.Changes = append(diff.Changes,
			store.Change{Path: []string{"context_tokens"}, OldValue: nil, NewValue: next.ContextTokens},
		)
		return diff
	}

	diffValue([]string{"context_tokens"}, prev.ContextTokens, next.ContextTokens, &diff.Changes)
	diffValue([]string{"tools_state"}, toAny(prev.ToolsState), toAny(next.ToolsState), &diff.Changes)
	diffValue([]string{"memory"}, toAny(prev.Memory), toAny(next.Memory), &diff.Changes)
	return diff
}

func toAny(v any) any { return v }

// diffValue recurses into maps and slices, emitting one Change per leaf
// value that differs and one Change for a path whose shape (type) changed.
func diffValue(path []string, oldV, newV any, changes *[]store.Change) {
	if reflect.DeepEqual(oldV, newV) {
		return
	}

	oldMap, oldIsMap := oldV.(map[string]any)
	newMap, newIsMap := newV.(map[string]any)
	if oldIsMap && newIsMap {
		diffMaps(path, oldMap, newMap, changes)
		return
	}

	*changes = append(*changes, store.Change{Path: append([]string{}, path...), OldValue: oldV, NewValue: newV})
}

func diffMaps(path []string, oldM, newM map[string]any, changes *[]store.Change) {
	seen := make(map[string]bool, len(oldM)+len(newM))
	for k, ov := range oldM {
		seen[k] = true
		nv, ok := newM[k]
		if !ok {
			*changes = append(*changes, store.Change{Path: append(append([]string{}, path...), k), OldValue: ov, NewValue: nil})
			continue
		}
		diffValue(append(append([]string{}, path...), k), ov, nv, changes)
	}
	for k, nv := range newM {
		if seen[k] {
			continue
		}
		*changes = append(*changes, store.Change{Path: append(append([]string{}, path...), k), OldValue: nil, NewValue: nv})
	}
}
