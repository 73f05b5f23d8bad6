package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-hierarchy/internal/app"
)

var (
	benchCount   int
	benchWorkers int
	benchRounds  int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure bulk resolution throughput on simulated snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchCount <= 0 {
			return fmt.Errorf("--count must be greater than zero")
		}
		return getApp().Bench(cmd.Context(), app.BenchOptions{
			Count:   benchCount,
			Workers: benchWorkers,
			Rounds:  benchRounds,
		})
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchCount, "count", 10000, "Number of snapshots per round")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 0, "Resolution workers (defaults to engine.workers)")
	benchCmd.Flags().IntVar(&benchRounds, "rounds", 3, "Rounds; the first is cold, the rest hit the cache")
}
