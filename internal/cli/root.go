// Package cli implements the tradesync command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/tradesync/internal/config"
	"github.com/rickgao/tradesync/internal/logging"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	envFiles   []string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "tradesync",
		Short: "Copy closed MT5 trades into a Notion trading journal",
		Long: `tradesync reads closed deals from one or more MetaTrader 5 accounts through
a terminal bridge and creates one page per trade in a Notion database.
Trades already in the journal are never written twice.

Configuration comes from a YAML file (--config) or, when no file is given,
from environment variables. A .env file in the working directory is loaded
first if present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", os.Getenv("TRADESYNC_CONFIG"), "path to YAML config (default: environment variables)")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before reading config (default: .env)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "override log.format (text, json)")

	root.AddCommand(
		newRunCmd(opts),
		newOnceCmd(opts),
		newCheckCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)

	return root
}

// Execute runs the root command. Canceling ctx stops a running sync after
// the cycle in progress.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// load reads the environment and config file and builds the logger.
func (o *options) load() error {
	if err := config.LoadEnv(o.envFiles...); err != nil {
		return err
	}

	cfg, err := config.LoadWithDefaults(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	o.cfg = cfg
	o.logger = logging.New(cfg.Log)
	slog.SetDefault(o.logger)

	for _, s := range cfg.Skipped {
		o.logger.Warn("skipping account with incomplete credentials", "account", s)
	}
	return nil
}
