package cli

import (
	"github.com/spf13/cobra"

	"market-hierarchy/internal/app"
)

var resolveOpts app.ResolveOptions

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve hierarchies for a YAML snapshot file once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Resolve(cmd.Context(), resolveOpts)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveOpts.File, "file", "", "Path to YAML snapshot file")
	resolveCmd.Flags().BoolVar(&resolveOpts.JSON, "json", false, "Print the result as JSON")
	resolveCmd.Flags().BoolVarP(&resolveOpts.Verbose, "verbose", "v", false, "Print every node tree")
	_ = resolveCmd.MarkFlagRequired("file")
}
