package analysis

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/tracecore/tracecore/pkg/store"
)

// Check is a pure predicate over a step list. Additional checks may be
// registered alongside the required ones in RunChecks, per SPEC_FULL.md
// §4.4's extensibility requirement.
type Check func(steps []store.Step) CheckResult

var (
	exploratoryPattern = regexp.MustCompile(`(?i)search|ls|read`)
	committingPattern  = regexp.MustCompile(`(?i)write|edit`)
)

// ClassifyTool labels a tool name exploratory or committing by the default
// classifier, or "" if neither pattern matches.
func ClassifyTool(name string) string {
	switch {
	case exploratoryPattern.MatchString(name):
		return "exploratory"
	case committingPattern.MatchString(name):
		return "committing"
	default:
		return ""
	}
}

// RetryCeiling fails when retries exceed 50% of total steps.
func RetryCeiling(steps []store.Step) CheckResult {
	if len(steps) == 0 {
		return CheckResult{Name: "retry_ceiling", Pass: true, Detail: "no steps"}
	}
	retries := 0
	for _, s := range steps {
		if s.Phase == store.PhaseRetry {
			retries++
		}
	}
	ratio := float64(retries) / float64(len(steps))
	detail := fmt.Sprintf("%d/%d steps are retries (%.0f%%)", retries, len(steps), ratio*100)
	if ratio > 0.5 {
		return CheckResult{Name: "retry_ceiling", Pass: false, Detail: detail + ", exceeding the 50% ceiling"}
	}
	return CheckResult{Name: "retry_ceiling", Pass: true, Detail: detail}
}

// OrderingConstraint names a relationship that must never hold between an
// earlier and a later step, e.g. a committing tool run before its
// corresponding exploratory read.
type OrderingConstraint struct {
	Name     string
	Violates func(before, after store.Step) bool
}

// ToolOrdering reports violations of any registered constraints. The
// default constraint set is empty, so it passes unless the caller supplies
// constraints, per SPEC_FULL.md §4.4.
func ToolOrdering(steps []store.Step, constraints []OrderingConstraint) CheckResult {
	if len(constraints) == 0 {
		return CheckResult{Name: "tool_ordering", Pass: true, Detail: "no ordering constraints registered"}
	}
	for i, before := range steps {
		for _, after := range steps[i+1:] {
			for _, c := range constraints {
				if c.Violates(before, after) {
					return CheckResult{Name: "tool_ordering", Pass: false,
						Detail: fmt.Sprintf("constraint %q violated between step %d and step %d", c.Name, before.StepID, after.StepID)}
				}
			}
		}
	}
	return CheckResult{Name: "tool_ordering", Pass: true, Detail: fmt.Sprintf("%d constraint(s) satisfied", len(constraints))}
}

// RunChecks runs the required checks plus any extra registered checks
// concurrently, via errgroup, since each is a pure read over the same
// immutable step slice; results are returned in registration order
// regardless of completion order.
func RunChecks(ctx context.Context, steps []store.Step, constraints []OrderingConstraint, extra ...Check) ([]CheckResult, error) {
	all := []Check{
		RetryCeiling,
		func(s []store.Step) CheckResult { return ToolOrdering(s, constraints) },
	}
	all = append(all, extra...)

	results := make([]CheckResult, len(all))
	g, _ := errgroup.WithContext(ctx)
	for i, check := range all {
		i, check := i, check
		g.Go(func() error {
			results[i] = check(steps)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
