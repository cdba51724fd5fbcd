// Package ledger records cycle summaries locally so operators can review
// sync history without opening the journal.
//
// Three drivers are available: "none" discards results, "sqlite" writes to a
// local file, and "postgres" writes to a shared database.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/tradesync/internal/config"
	"github.com/rickgao/tradesync/internal/database"
	"github.com/rickgao/tradesync/internal/model"
)

// Store persists cycle results. It satisfies scheduler.Reporter.
type Store interface {
	Report(ctx context.Context, result model.CycleResult) error
	RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error)
	Failures(ctx context.Context, cycleID uuid.UUID) ([]AccountFailure, error)
	Close() error
}

// CycleSummary is one stored cycle with its totals.
type CycleSummary struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Totals     model.Totals
}

// AccountFailure is a stored per-trade failure.
type AccountFailure struct {
	Account string
	model.Failure
}

// Duration returns how long the cycle ran.
func (c CycleSummary) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// Open creates the store selected by cfg.Driver and ensures its tables exist.
func Open(ctx context.Context, cfg config.LedgerConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("ledger opened", "driver", "sqlite", "path", cfg.Path)
		return s, nil
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect ledger: %w", err)
		}
		s, err := NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("ledger opened", "driver", "postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Name)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

// Nop discards every result.
type Nop struct{}

func (Nop) Report(context.Context, model.CycleResult) error { return nil }

func (Nop) RecentCycles(context.Context, int) ([]CycleSummary, error) { return nil, nil }

func (Nop) Failures(context.Context, uuid.UUID) ([]AccountFailure, error) { return nil, nil }

func (Nop) Close() error { return nil }

func errorColumns(a model.AccountResult) (kind, message string) {
	if a.Err == nil {
		return "", ""
	}
	return string(a.Err.Kind), a.Err.Message
}
