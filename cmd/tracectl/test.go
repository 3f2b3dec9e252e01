package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracecore/tracecore/internal/assertcheck"
)

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <run_dir> [assertion_file]",
		Short: "Check a run against a small YAML assertion file; exits 1 if any assertion fails",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			run, err := st.Load(ctx, args[0])
			if err != nil {
				return err
			}

			expect := assertcheck.Expect{Status: "success"}
			if len(args) == 2 {
				data, err := os.ReadFile(args[1])
				if err != nil {
					return err
				}
				parsed, err := assertcheck.Parse(data)
				if err != nil {
					return err
				}
				expect = parsed.Expect
			}

			results := assertcheck.Check(run, expect, 0)
			for _, r := range results {
				fmt.Printf("[%s] %s: %s\n", passFail(r.Pass), r.Name, r.Detail)
			}
			if !assertcheck.AllPass(results) {
				os.Exit(1)
			}
			return nil
		},
	}
}
