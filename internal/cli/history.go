package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rickgao/tradesync/internal/ledger"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync cycles from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(); err != nil {
				return err
			}
			if opts.cfg.Ledger.Driver == "none" {
				return errors.New("no ledger configured (set ledger.driver to sqlite or postgres)")
			}

			store, err := ledger.Open(cmd.Context(), opts.cfg.Ledger, opts.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			cycles, err := store.RecentCycles(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), cycles)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of cycles to show")
	return cmd
}
