package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rickgao/tradesync/internal/model"
)

// SQLiteSchema creates the ledger tables.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS cycles (
	id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	accounts INTEGER NOT NULL,
	failed_accounts INTEGER NOT NULL,
	fetched INTEGER NOT NULL,
	duplicate INTEGER NOT NULL,
	created INTEGER NOT NULL,
	failed INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS account_results (
	cycle_id TEXT NOT NULL REFERENCES cycles(id),
	account TEXT NOT NULL,
	state TEXT NOT NULL,
	failed_at TEXT NOT NULL,
	error_kind TEXT NOT NULL,
	error_message TEXT NOT NULL,
	fetched INTEGER NOT NULL,
	duplicate INTEGER NOT NULL,
	created INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	started_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (cycle_id, account)
);

CREATE TABLE IF NOT EXISTS failures (
	cycle_id TEXT NOT NULL REFERENCES cycles(id),
	account TEXT NOT NULL,
	ticket_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycles_started_at ON cycles(started_at);
`

// SQLite stores cycles in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite ledger schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Report writes the cycle, its account results and failures in one transaction.
func (s *SQLite) Report(ctx context.Context, result model.CycleResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	id := result.ID.String()
	t := result.Totals()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cycles (id, started_at, finished_at, accounts, failed_accounts, fetched, duplicate, created, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.StartedAt.UTC(), result.FinishedAt.UTC(),
		t.Accounts, t.FailedAccounts, t.Fetched, t.Duplicate, t.Created, t.Failed,
	); err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	for _, a := range result.Accounts {
		kind, msg := errorColumns(a)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO account_results
			(cycle_id, account, state, failed_at, error_kind, error_message, fetched, duplicate, created, failed, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, a.Account, a.State.String(), a.FailedAt.String(), kind, msg,
			a.Fetched, a.Duplicate, a.Created, a.Failed, a.StartedAt.UTC(), a.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert account result %s: %w", a.Account, err)
		}

		for _, f := range a.Failures {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO failures (cycle_id, account, ticket_id, kind, message)
				VALUES (?, ?, ?, ?, ?)`,
				id, a.Account, f.TicketID, string(f.Kind), f.Message,
			); err != nil {
				return fmt.Errorf("insert failure: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// RecentCycles returns up to limit cycles, newest first.
func (s *SQLite) RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, accounts, failed_accounts, fetched, duplicate, created, failed
		FROM cycles
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleSummary
	for rows.Next() {
		var (
			c  CycleSummary
			id string
		)
		if err := rows.Scan(&id, &c.StartedAt, &c.FinishedAt,
			&c.Totals.Accounts, &c.Totals.FailedAccounts,
			&c.Totals.Fetched, &c.Totals.Duplicate, &c.Totals.Created, &c.Totals.Failed,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse cycle id %q: %w", id, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Failures returns the failures recorded for a cycle.
func (s *SQLite) Failures(ctx context.Context, cycleID uuid.UUID) ([]AccountFailure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account, ticket_id, kind, message
		FROM failures
		WHERE cycle_id = ?
		ORDER BY rowid`, cycleID.String())
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []AccountFailure
	for rows.Next() {
		var (
			f    AccountFailure
			kind string
		)
		if err := rows.Scan(&f.Account, &f.TicketID, &kind, &f.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.Kind = model.ErrorKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
