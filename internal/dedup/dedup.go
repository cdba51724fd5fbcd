// Package dedup answers which trade tickets already exist in the journal.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/rickgao/tradesync/internal/model"
	"github.com/rickgao/tradesync/internal/notion"
)

// DefaultBatchSize is the number of tickets per lookup query. Notion accepts
// at most 100 conditions in one compound filter.
const DefaultBatchSize = 50

// Querier reads pages from the journal database.
type Querier interface {
	QueryPages(ctx context.Context, databaseID string, filter *notion.Filter) ([]notion.Page, error)
}

// Config configures an Index.
type Config struct {
	DatabaseID      string
	TicketProperty  string // Number property holding the ticket
	AccountProperty string // Select property holding the account; optional
	BatchSize       int
}

// Index is the set of tickets already stored for one account. It is built
// fresh each cycle and never reused across cycles.
type Index struct {
	store   Querier
	cfg     Config
	account string
	schema  model.SchemaDescriptor
	logger  *slog.Logger

	checked map[int64]bool // ticket -> exists
}

// New creates an index for one account.
func New(store Querier, cfg Config, account string, schema model.SchemaDescriptor, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > notion.MaxPageSize {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Index{
		store:   store,
		cfg:     cfg,
		account: account,
		schema:  schema,
		logger:  logger.With("component", "dedup", "account", account),
		checked: make(map[int64]bool),
	}
}

// Existing returns the subset of tickets already present in the journal.
// Tickets checked by an earlier call are answered from cache. Any query
// failure is a DuplicateCheckError; the caller must not write in that case.
func (x *Index) Existing(ctx context.Context, tickets []int64) (map[int64]struct{}, error) {
	var pending []int64
	seen := make(map[int64]bool, len(tickets))
	for _, t := range tickets {
		if seen[t] {
			continue
		}
		seen[t] = true
		if _, ok := x.checked[t]; !ok {
			pending = append(pending, t)
		}
	}

	for start := 0; start < len(pending); start += x.cfg.BatchSize {
		end := min(start+x.cfg.BatchSize, len(pending))
		batch := pending[start:end]

		found, err := x.lookup(ctx, batch)
		if err != nil {
			return nil, model.NewError(model.KindDuplicateCheck, "query duplicates", err)
		}
		for _, t := range batch {
			x.checked[t] = found[t]
		}
	}

	out := make(map[int64]struct{})
	for t := range seen {
		if x.checked[t] {
			out[t] = struct{}{}
		}
	}

	x.logger.Debug("duplicate check complete",
		"tickets", len(seen),
		"queried", len(pending),
		"existing", len(out),
	)

	return out, nil
}

// Contains reports whether a ticket is known to exist.
func (x *Index) Contains(ticket int64) bool {
	return x.checked[ticket]
}

// MarkCreated records a ticket written during this cycle.
func (x *Index) MarkCreated(ticket int64) {
	x.checked[ticket] = true
}

func (x *Index) lookup(ctx context.Context, tickets []int64) (map[int64]bool, error) {
	conds := make([]notion.Filter, len(tickets))
	for i, t := range tickets {
		conds[i] = notion.NumberEquals(x.cfg.TicketProperty, float64(t))
	}
	filter := notion.Or(conds...)

	// Without an account property the filter matches the ticket alone, which can
	// only over-report duplicates.
	if x.cfg.AccountProperty != "" {
		switch kind, _ := x.schema.Kind(x.cfg.AccountProperty); kind {
		case model.KindSelect:
			filter = notion.And(notion.SelectEquals(x.cfg.AccountProperty, x.account), filter)
		case model.KindRichText:
			filter = notion.And(notion.RichTextEquals(x.cfg.AccountProperty, x.account), filter)
		}
	}

	pages, err := x.store.QueryPages(ctx, x.cfg.DatabaseID, &filter)
	if err != nil {
		return nil, err
	}

	found := make(map[int64]bool, len(pages))
	for _, p := range pages {
		n, ok := p.Number(x.cfg.TicketProperty)
		if !ok || n != math.Trunc(n) {
			continue
		}
		found[int64(n)] = true
	}

	if len(pages) > 0 && len(found) == 0 {
		return nil, fmt.Errorf("%d matching pages but none carry a readable %q", len(pages), x.cfg.TicketProperty)
	}

	return found, nil
}
