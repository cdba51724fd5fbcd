package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/tradesync/internal/config"
	"github.com/rickgao/tradesync/internal/ledger"
	"github.com/rickgao/tradesync/internal/mapper"
	"github.com/rickgao/tradesync/internal/notion"
	"github.com/rickgao/tradesync/internal/scheduler"
	"github.com/rickgao/tradesync/internal/syncer"
	"github.com/rickgao/tradesync/internal/terminal"
	"github.com/rickgao/tradesync/internal/writer"
)

// app holds the wired sync pipeline.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	notion   *notion.Client
	mapper   *mapper.Mapper
	writer   *writer.Writer
	syncer   *syncer.Syncer
	accounts []syncer.Account
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	names, err := mapper.DefaultNames().WithOverrides(cfg.Properties)
	if err != nil {
		return nil, fmt.Errorf("property names: %w", err)
	}

	client := notion.NewClient(cfg.Notion.Token,
		notion.WithBaseURL(cfg.Notion.BaseURL),
		notion.WithVersion(cfg.Notion.Version),
		notion.WithTimeout(cfg.Notion.Timeout),
		notion.WithRetries(cfg.Notion.MaxRetries, notion.DefaultRetryBackoff),
		notion.WithLogger(logger),
	)

	m := mapper.New(names)

	w := writer.New(client, writer.Config{
		DatabaseID:  cfg.Notion.Database,
		Concurrency: cfg.Writer.Concurrency,
		Backoff: writer.BackoffPolicy{
			Base:       cfg.Writer.BaseDelay,
			Multiplier: cfg.Writer.Multiplier,
			Max:        cfg.Writer.MaxDelay,
			MaxRetries: cfg.Writer.MaxRetries,
		},
		DrainTimeout: cfg.Writer.DrainTimeout,
	}, logger)

	s := syncer.New(syncer.Config{
		DatabaseID:     cfg.Notion.Database,
		LookbackDays:   cfg.Sync.LookbackDays,
		QueryBatchSize: cfg.Sync.QueryBatchSize,
	}, client, m, w, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		notion:   client,
		mapper:   m,
		writer:   w,
		syncer:   s,
		accounts: buildAccounts(cfg, logger),
	}, nil
}

// buildAccounts gives every account its own bridge terminal.
func buildAccounts(cfg *config.Config, logger *slog.Logger) []syncer.Account {
	out := make([]syncer.Account, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		bridge := terminal.NewBridge(terminal.BridgeConfig{
			URL:              a.BridgeURL,
			Token:            cfg.Bridge.Token,
			HandshakeTimeout: cfg.Bridge.HandshakeTimeout,
			RequestTimeout:   cfg.Bridge.RequestTimeout,
			PingInterval:     cfg.Bridge.PingInterval,
		}, logger.With("account", a.Name))

		out = append(out, syncer.Account{
			Name: a.Name,
			Credentials: terminal.Credentials{
				Login:    a.Login,
				Password: a.Password,
				Server:   a.Server,
				Path:     a.Path,
			},
			LookbackDays: a.LookbackDays,
			Terminal:     bridge,
		})
	}
	return out
}

func (a *app) scheduler(opts ...scheduler.Option) *scheduler.Scheduler {
	return scheduler.New(scheduler.Config{
		DatabaseID:         a.cfg.Notion.Database,
		Interval:           a.cfg.Sync.Interval,
		AccountConcurrency: a.cfg.Sync.AccountConcurrency,
	}, a.accounts, a.syncer, a.notion, a.mapper, a.logger, opts...)
}

func (a *app) openLedger(ctx context.Context) (ledger.Store, error) {
	store, err := ledger.Open(ctx, a.cfg.Ledger, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return store, nil
}
