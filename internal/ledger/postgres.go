package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/tradesync/internal/model"
)

// PostgresSchema creates the ledger tables.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS sync_cycles (
	id UUID PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	accounts INTEGER NOT NULL,
	failed_accounts INTEGER NOT NULL,
	fetched INTEGER NOT NULL,
	duplicate INTEGER NOT NULL,
	created INTEGER NOT NULL,
	failed INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_account_results (
	cycle_id UUID NOT NULL REFERENCES sync_cycles(id) ON DELETE CASCADE,
	account TEXT NOT NULL,
	state TEXT NOT NULL,
	failed_at TEXT NOT NULL,
	error_kind TEXT NOT NULL,
	error_message TEXT NOT NULL,
	fetched INTEGER NOT NULL,
	duplicate INTEGER NOT NULL,
	created INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	PRIMARY KEY (cycle_id, account)
);

CREATE TABLE IF NOT EXISTS sync_failures (
	id BIGSERIAL PRIMARY KEY,
	cycle_id UUID NOT NULL REFERENCES sync_cycles(id) ON DELETE CASCADE,
	account TEXT NOT NULL,
	ticket_id BIGINT NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_cycles_started_at ON sync_cycles(started_at DESC);
`

// Postgres stores cycles in a shared PostgreSQL database.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates the ledger tables on pool. The store owns the pool.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		return nil, fmt.Errorf("create postgres ledger schema: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// Report writes the cycle and its rows in one transaction using a batch.
func (p *Postgres) Report(ctx context.Context, result model.CycleResult) error {
	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		t := result.Totals()
		batch := &pgx.Batch{}
		batch.Queue(`
			INSERT INTO sync_cycles (id, started_at, finished_at, accounts, failed_accounts, fetched, duplicate, created, failed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`, result.ID.String(), result.StartedAt, result.FinishedAt,
			t.Accounts, t.FailedAccounts, t.Fetched, t.Duplicate, t.Created, t.Failed)

		for _, a := range result.Accounts {
			kind, msg := errorColumns(a)
			batch.Queue(`
				INSERT INTO sync_account_results
				(cycle_id, account, state, failed_at, error_kind, error_message, fetched, duplicate, created, failed, started_at, duration_ms)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (cycle_id, account) DO NOTHING
			`, result.ID.String(), a.Account, a.State.String(), a.FailedAt.String(), kind, msg,
				a.Fetched, a.Duplicate, a.Created, a.Failed, a.StartedAt, a.Duration.Milliseconds())

			for _, f := range a.Failures {
				batch.Queue(`
					INSERT INTO sync_failures (cycle_id, account, ticket_id, kind, message)
					VALUES ($1, $2, $3, $4, $5)
				`, result.ID.String(), a.Account, f.TicketID, string(f.Kind), f.Message)
			}
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("write cycle %s: %w", result.ID, err)
		}
		return nil
	})
}

// RecentCycles returns up to limit cycles, newest first.
func (p *Postgres) RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id::text, started_at, finished_at, accounts, failed_accounts, fetched, duplicate, created, failed
		FROM sync_cycles
		ORDER BY started_at DESC
		LIMIT $1`, limit)
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
func (p *Postgres) Failures(ctx context.Context, cycleID uuid.UUID) ([]AccountFailure, error) {
	rows, err := p.db.Query(ctx, `
		SELECT account, ticket_id, kind, message
		FROM sync_failures
		WHERE cycle_id = $1
		ORDER BY id`, cycleID.String())
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

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
