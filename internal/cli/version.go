package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/tradesync/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tradesync %s\n", version.String())
		},
	}
}
