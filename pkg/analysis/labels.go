package analysis

import "github.com/tracecore/tracecore/pkg/store"

// Labels computes heuristic, non-mutating semantic tags per step, per
// SPEC_FULL.md §4.4: retry-loop for two or more consecutive retry statuses,
// exploration/commitment from the default tool-name classifier.
func Labels(steps []store.Step) []Label {
	var out []Label
	consecutiveRetries := 0
	for _, s := range steps {
		if s.Status == store.StatusRetry {
			consecutiveRetries++
			if consecutiveRetries >= 2 {
				out = append(out, Label{StepID: s.StepID, Tag: "retry-loop"})
			}
		} else {
			consecutiveRetries = 0
		}

		if s.Phase != store.PhaseTool {
			continue
		}
		name, _ := s.Input["tool"].(string)
		switch ClassifyTool(name) {
		case "exploratory":
			out = append(out, Label{StepID: s.StepID, Tag: "exploration"})
		case "committing":
			out = append(out, Label{StepID: s.StepID, Tag: "commitment"})
		}
	}
	return out
}
