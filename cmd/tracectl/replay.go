package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracecore/tracecore/pkg/recorder"
	"github.com/tracecore/tracecore/pkg/replay"
	"github.com/tracecore/tracecore/pkg/store"
)

func newReplayCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "replay <run_dir>",
		Short: "Replay a recorded run against itself and report divergences; exits 1 if any are found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			original, err := st.Load(ctx, args[0])
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = os.TempDir()
			}

			cfg := recorder.DefaultConfig()
			cfg.Store.BaseDir = outDir
			rec, err := recorder.New(cfg, st, recorder.NewLocalLock())
			if err != nil {
				return err
			}
			replayRunID, err := rec.Init(ctx, recorder.InitMeta{
				AgentVersion: original.Meta.AgentVersion,
				LLM:          original.Meta.LLM,
			})
			if err != nil {
				return err
			}

			engine := replay.New(st, original, rec)
			for _, s := range original.Steps {
				switch s.Phase {
				case store.PhaseReason:
					_, _ = engine.Model(ctx, s.Input)
				case store.PhaseTool:
					name, _ := s.Input["tool"].(string)
					_, _ = engine.Tool(name)(ctx, nil)
				}
			}
			report := engine.Finish(replayRunID)
			if err := rec.Stop(ctx, "success"); err != nil {
				return err
			}

			fmt.Printf("replayed %s -> %s, %d divergence(s)\n", original.Meta.RunID, report.ReplayRunID, len(report.Divergences))
			for _, d := range report.Divergences {
				fmt.Printf("  [%s] step %d: %s\n", d.Kind, d.StepID, d.Detail)
			}
			if len(report.Divergences) > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write the replay trace into (default: system temp dir)")
	return cmd
}
