package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"market-hierarchy/internal/app"
)

var (
	showLimit         int
	showOpportunities bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent metrics samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:         showLimit,
			Opportunities: showOpportunities,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of samples to display")
	showCmd.Flags().BoolVar(&showOpportunities, "opportunities", false, "Also list recently alerted opportunities")
}
