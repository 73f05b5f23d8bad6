package cli

import (
	"github.com/spf13/cobra"
)

var (
	latencyA string
	latencyB string
)

var latencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Probe round-trip latency between two exchanges",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Latency(cmd.Context(), latencyA, latencyB)
	},
}

func init() {
	latencyCmd.Flags().StringVar(&latencyA, "a", "", "First exchange id (key of exchange.probe_urls)")
	latencyCmd.Flags().StringVar(&latencyB, "b", "", "Second exchange id (key of exchange.probe_urls)")
}
