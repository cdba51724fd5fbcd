package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rickgao/tradesync/internal/ledger"
	"github.com/rickgao/tradesync/internal/model"
)

// writeSummary prints one cycle as a table followed by its failures.
func writeSummary(w io.Writer, r model.CycleResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tSTATE\tFETCHED\tDUPLICATE\tCREATED\tFAILED\tERROR")
	for _, a := range r.Accounts {
		errText := ""
		if a.Err != nil {
			errText = fmt.Sprintf("%s at %s: %s", a.Err.Kind, a.FailedAt, a.Err.Message)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			a.Account, a.State, a.Fetched, a.Duplicate, a.Created, a.Failed, errText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, a := range r.Accounts {
		for _, f := range a.Failures {
			if f.TicketID != 0 {
				fmt.Fprintf(w, "  %s ticket %d: %s: %s\n", a.Account, f.TicketID, f.Kind, f.Message)
			} else {
				fmt.Fprintf(w, "  %s: %s: %s\n", a.Account, f.Kind, f.Message)
			}
		}
	}

	t := r.Totals()
	_, err := fmt.Fprintf(w, "cycle %s: %d created, %d duplicate, %d failed, %d/%d accounts ok in %s\n",
		r.ID, t.Created, t.Duplicate, t.Failed, t.Accounts-t.FailedAccounts, t.Accounts,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	return err
}

// writeHistory prints stored cycles, newest first.
func writeHistory(w io.Writer, cycles []ledger.CycleSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tCYCLE\tACCOUNTS\tFAILED ACCOUNTS\tFETCHED\tCREATED\tFAILED\tDURATION")
	for _, c := range cycles {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			c.StartedAt.UTC().Format(time.DateTime), c.ID,
			c.Totals.Accounts, c.Totals.FailedAccounts,
			c.Totals.Fetched, c.Totals.Created, c.Totals.Failed,
			c.Duration().Round(time.Millisecond))
	}
	return tw.Flush()
}
