package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/tracecore/tracecore/pkg/analysis"
)

func newWatchCmd() *cobra.Command {
	var every string
	cmd := &cobra.Command{
		Use:   "watch <run_dir>",
		Short: "Periodically re-run analyze against a run directory that is still being written",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runDir := args[0]

			c := cron.New()
			if _, err := c.AddFunc("@every "+every, func() { watchTick(runDir) }); err != nil {
				return fmt.Errorf("watch: invalid --every %q: %w", every, err)
			}
			c.Start()
			defer c.Stop()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			return nil
		},
	}
	cmd.Flags().StringVar(&every, "every", "5s", "polling interval, e.g. 5s, 1m")
	return cmd
}

func watchTick(runDir string) {
	run, err := st.Load(context.Background(), runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "watch:", err)
		return
	}
	fmt.Printf("--- %s: %d steps so far (partial=%v) ---\n", runDir, len(run.Steps), run.Partial)
	for _, l := range analysis.Labels(run.Steps) {
		fmt.Printf("  step %d: %s\n", l.StepID, l.Tag)
	}
}
