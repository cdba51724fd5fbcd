package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rickgao/tradesync/internal/mapper"
	"github.com/rickgao/tradesync/internal/model"
)

func newCheckCmd(opts *options) *cobra.Command {
	var skipAccounts bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the Notion token, journal schema and account logins",
		Long: `Check connectivity without writing anything:

  - the Notion token is accepted
  - the journal database is reachable and its properties are listed
  - the database can hold trades (one title property, a number Ticket ID)
  - every account can log in through its terminal bridge`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(); err != nil {
				return err
			}
			a, err := newApp(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), a, !skipAccounts)
		},
	}

	cmd.Flags().BoolVar(&skipAccounts, "skip-accounts", false, "only check the journal, not the terminal logins")
	return cmd
}

func runCheck(ctx context.Context, out io.Writer, a *app, checkAccounts bool) error {
	var problems int

	me, err := a.notion.Me(ctx)
	if err != nil {
		return fmt.Errorf("notion: %w", err)
	}
	workspace := ""
	if me.Bot != nil {
		workspace = me.Bot.WorkspaceName
	}
	fmt.Fprintf(out, "notion: connected as %q (workspace %q)\n", me.Name, workspace)

	schema, err := a.notion.DescribeSchema(ctx, a.cfg.Notion.Database)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	fmt.Fprintf(out, "journal: %q (%s), %d properties\n", schema.Title, schema.DatabaseID, len(schema.Properties))
	writeFieldMap(out, a.mapper.Names(), schema)

	if err := a.mapper.Validate(schema); err != nil {
		fmt.Fprintf(out, "journal: cannot hold trades: %v\n", err)
		problems++
	} else {
		fmt.Fprintln(out, "journal: schema ok")
	}

	if checkAccounts {
		for _, acct := range a.accounts {
			session, err := acct.Terminal.Login(ctx, acct.Credentials)
			if err != nil {
				fmt.Fprintf(out, "account %s: %v\n", acct.Name, err)
				problems++
				continue
			}
			info := session.Account()
			fmt.Fprintf(out, "account %s: logged in as %d on %s (%s %.2f)\n",
				acct.Name, info.Login, info.Server, info.Currency, info.Balance)
			session.Close()
		}
	}

	if problems > 0 {
		return fmt.Errorf("check found %d problem(s)", problems)
	}
	return nil
}

// writeFieldMap shows where each trade field will be written.
func writeFieldMap(out io.Writer, names mapper.Names, schema model.SchemaDescriptor) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  FIELD\tPROPERTY\tKIND\t")

	for _, key := range mapper.FieldKeys() {
		name, _ := names.Lookup(key)
		switch kind, ok := schema.Kind(name); {
		case name == "":
			fmt.Fprintf(tw, "  %s\t-\tdisabled\t\n", key)
		case !ok:
			fmt.Fprintf(tw, "  %s\t%s\tmissing, skipped\t\n", key, name)
		case kind.IsReadOnly():
			fmt.Fprintf(tw, "  %s\t%s\t%s, read-only\t\n", key, name, kind)
		default:
			fmt.Fprintf(tw, "  %s\t%s\t%s\t\n", key, name, kind)
		}
	}
	tw.Flush()
}
