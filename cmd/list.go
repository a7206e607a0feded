package cmd

import (
	"github.com/spf13/cobra"
)

func newListCmd(opts *options) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all listening ports",
		Long:  `List all TCP ports currently in LISTEN state with their associated processes.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.all = true
			return runQuery(cmd, opts, nil)
		},
	}
	listCmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Browse results in an interactive table")
	return listCmd
}
