package store

import "fmt"

// ValidateContiguous checks that step identifiers form the contiguous
// sequence 1..N with no gaps or duplicates, per the "step identifiers are
// contiguous starting from 1; gaps indicate corruption" invariant.
func ValidateContiguous(steps []Step) error {
	for i, s := range steps {
		want := i + 1
		if s.StepID != want {
			return fmt.Errorf("non-contiguous step sequence: expected step_id %d at position %d, got %d", want, i, s.StepID)
		}
	}
	return nil
}

// ValidateSnapshotsExist checks that every non-terminal step in a sealed run
// references a snapshot that exists and parses, per the sealed-run invariant.
// A terminal step (phase terminate) is exempt since it carries no staged
// memory of its own.
func ValidateSnapshotsExist(steps []Step, snap func(stepID int) (*Snapshot, error)) error {
	for _, s := range steps {
		if s.Phase == PhaseTerminate {
			continue
		}
		if s.StateRef == "" {
			return fmt.Errorf("step %d: missing snapshot reference", s.StepID)
		}
		got, err := snap(s.StepID)
		if err != nil {
			return fmt.Errorf("step %d: snapshot does not parse: %w", s.StepID, err)
		}
		if got == nil {
			return fmt.Errorf("step %d: snapshot does not exist", s.StepID)
		}
	}
	return nil
}
