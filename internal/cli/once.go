package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/tradesync/internal/scheduler"
)

func newOnceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single sync cycle and print its summary",
		Long: `Run one sync cycle over every configured account, print a per-account
summary and exit. The exit status is non-zero if any account failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(); err != nil {
				return err
			}

			a, err := newApp(opts.cfg, opts.logger)
			if err != nil {
				return err
			}

			store, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			return syncOnce(cmd.Context(), cmd, a.scheduler(scheduler.WithReporter(store)))
		},
	}
}

func syncOnce(ctx context.Context, cmd *cobra.Command, sched *scheduler.Scheduler) error {
	result, err := sched.RunOnce(ctx)
	if err != nil {
		return err
	}

	if err := writeSummary(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if t := result.Totals(); t.FailedAccounts > 0 {
		return fmt.Errorf("%d of %d accounts failed", t.FailedAccounts, t.Accounts)
	}
	return nil
}
