package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracecore/tracecore/pkg/analysis"
)

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <run_dir>",
		Short: "Run invariant checks, semantic labels, and root-cause extraction over a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			run, err := st.Load(ctx, args[0])
			if err != nil {
				return err
			}

			results, err := analysis.RunChecks(ctx, run.Steps, nil)
			if err != nil {
				return err
			}
			fmt.Println("invariant checks:")
			for _, r := range results {
				fmt.Printf("  [%s] %s: %s\n", passFail(r.Pass), r.Name, r.Detail)
			}

			if labels := analysis.Labels(run.Steps); len(labels) > 0 {
				fmt.Println("labels:")
				for _, l := range labels {
					fmt.Printf("  step %d: %s\n", l.StepID, l.Tag)
				}
			}

			if rc := analysis.FindRootCause(run.Steps); rc != nil {
				fmt.Printf("root cause: %s (confidence %.1f)\n", rc.Description, rc.Confidence)
			} else {
				fmt.Println("root cause: none (no failing step)")
			}
			return nil
		},
	}
}

func passFail(pass bool) string {
	if pass {
		return "pass"
	}
	return "fail"
}
