package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <run_dir>",
		Short: "Load a run and print a summary; exits 1 on load failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := st.Load(context.Background(), args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Printf("run %s: %d steps, status=%s, truncated=%v, partial=%v\n",
				run.Meta.RunID, len(run.Steps), run.Meta.Status, run.Meta.Truncated, run.Partial)
			for _, s := range run.Steps {
				fmt.Printf("  step %d [%s] status=%s\n", s.StepID, s.Phase, s.Status)
			}
			return nil
		},
	}
}
