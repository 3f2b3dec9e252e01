// Command tracectl is the ambient CLI wrapping the core trace substrate's
// read and instrumentation APIs: inspect, replay, analyze, test, watch
// (SPEC_FULL.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracecore/tracecore/pkg/store"
)

var st store.Store = store.NewFileStore()

func main() {
	root := &cobra.Command{
		Use:   "tracectl",
		Short: "Inspect, replay, and analyze recorded agent traces",
	}
	root.AddCommand(
		newInspectCmd(),
		newReplayCmd(),
		newAnalyzeCmd(),
		newTestCmd(),
		newWatchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
