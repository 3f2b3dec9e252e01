// Package assertcheck is a minimal YAML assertion runner: a thin ambient
// stand-in for the fuller, explicitly out-of-scope YAML assertion grammar,
// backing `tracectl test` (SPEC_FULL.md §6).
package assertcheck

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tracecore/tracecore/pkg/store"
)

// Expectations is the root of an assertion file, e.g.:
//
//	expect:
//	  status: success
//	  max_steps: 10
//	  no_divergence: true
type Expectations struct {
	Expect Expect `yaml:"expect"`
}

// Expect names the conditions `tracectl test` checks. A zero-valued field
// is simply not checked (max_steps: 0 means "no ceiling asserted").
type Expect struct {
	Status       string `yaml:"status"`
	MaxSteps     int    `yaml:"max_steps"`
	NoDivergence bool   `yaml:"no_divergence"`
}

// Parse reads an assertion file's contents.
func Parse(data []byte) (Expectations, error) {
	var e Expectations
	if err := yaml.Unmarshal(data, &e); err != nil {
		return Expectations{}, fmt.Errorf("assertcheck: parse: %w", err)
	}
	return e, nil
}

// Result is the outcome of checking one expectation.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Check evaluates expect against run. divergenceCount is the number of
// divergences from a prior replay of run against itself, or 0 when the
// caller isn't asserting replay fidelity (no_divergence: false).
func Check(run *store.Run, expect Expect, divergenceCount int) []Result {
	var results []Result
	if expect.Status != "" {
		pass := string(run.Meta.Status) == expect.Status
		results = append(results, Result{Name: "status", Pass: pass,
			Detail: fmt.Sprintf("want status %q, got %q", expect.Status, run.Meta.Status)})
	}
	if expect.MaxSteps > 0 {
		pass := len(run.Steps) <= expect.MaxSteps
		results = append(results, Result{Name: "max_steps", Pass: pass,
			Detail: fmt.Sprintf("want at most %d steps, got %d", expect.MaxSteps, len(run.Steps))})
	}
	if expect.NoDivergence {
		pass := divergenceCount == 0
		results = append(results, Result{Name: "no_divergence", Pass: pass,
			Detail: fmt.Sprintf("want 0 divergences, got %d", divergenceCount)})
	}
	return results
}

// AllPass reports whether every result passed.
func AllPass(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}
