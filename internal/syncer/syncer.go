// Package syncer reconciles one account's closed trades into the journal.
//
// Each call to SyncAccount walks the account through
// Idle -> Authenticating -> Fetching -> Deduplicating -> Mapping -> Writing -> Done,
// stopping in Failed at the first step that cannot complete. Nothing is
// written unless the duplicate check succeeded.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/tradesync/internal/dedup"
	"github.com/rickgao/tradesync/internal/mapper"
	"github.com/rickgao/tradesync/internal/model"
	"github.com/rickgao/tradesync/internal/normalize"
	"github.com/rickgao/tradesync/internal/terminal"
	"github.com/rickgao/tradesync/internal/writer"
)

// DefaultLookbackDays is the fetch window when an account does not set one.
const DefaultLookbackDays = 30

// Account is one configured trading account.
type Account struct {
	Name         string
	Credentials  terminal.Credentials
	LookbackDays int
	Terminal     terminal.Terminal
}

// Writer creates journal pages.
type Writer interface {
	Create(ctx context.Context, entries []model.PropertyWriteSet) []writer.Outcome
}

// Config configures a Syncer.
type Config struct {
	DatabaseID     string
	LookbackDays   int // Default for accounts that do not set one
	QueryBatchSize int
}

// Syncer runs the per-account pipeline. It holds no per-account state and
// may serve several accounts concurrently.
type Syncer struct {
	cfg    Config
	store  dedup.Querier
	mapper *mapper.Mapper
	writer Writer
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock replaces the clock used for the fetch window.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// New creates a Syncer.
func New(cfg Config, store dedup.Querier, m *mapper.Mapper, w Writer, logger *slog.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	s := &Syncer{
		cfg:    cfg,
		store:  store,
		mapper: m,
		writer: w,
		now:    time.Now,
		logger: logger.With("component", "syncer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run carries one account through the state machine.
type run struct {
	ctx    context.Context
	acct   Account
	logger *slog.Logger
	result model.AccountResult
}

func (r *run) enter(state model.State) {
	r.result.State = state
	r.logger.Debug("sync step", "state", state)
}

// fail moves the run to Failed. Errors that carry no kind are given def.
func (r *run) fail(def model.ErrorKind, err error) model.AccountResult {
	failure := model.FailureFrom(0, err)
	switch {
	case r.ctx.Err() != nil && errors.Is(err, r.ctx.Err()):
		failure.Kind = model.KindCanceled
	case model.KindOf(err) == "":
		failure.Kind = def
	}

	r.result.FailedAt = r.result.State
	r.result.State = model.StateFailed
	r.result.Err = &failure

	r.logger.Warn("account sync failed",
		"step", r.result.FailedAt,
		"kind", failure.Kind,
		"err", err,
	)
	return r.result
}

// SyncAccount runs one account's cycle against a validated schema. It never
// panics or returns an error; every failure is recorded in the result.
func (s *Syncer) SyncAccount(ctx context.Context, acct Account, schema model.SchemaDescriptor) model.AccountResult {
	start := s.now()
	r := &run{
		ctx:    ctx,
		acct:   acct,
		logger: s.logger.With("account", acct.Name),
		result: model.AccountResult{Account: acct.Name, State: model.StateIdle, StartedAt: start},
	}

	res := s.sync(r, schema)
	res.Duration = s.now().Sub(start)

	if res.OK() {
		r.logger.Info("account synced",
			"fetched", res.Fetched,
			"duplicate", res.Duplicate,
			"created", res.Created,
			"failed", res.Failed,
			"duration", res.Duration,
		)
	}
	return res
}

func (s *Syncer) sync(r *run, schema model.SchemaDescriptor) model.AccountResult {
	ctx := r.ctx

	r.enter(model.StateAuthenticating)
	if r.acct.Terminal == nil {
		return r.fail(model.KindAuthentication, model.Errorf(model.KindAuthentication, "login", "no terminal configured"))
	}
	session, err := r.acct.Terminal.Login(ctx, r.acct.Credentials)
	if err != nil {
		return r.fail(model.KindAuthentication, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Debug("session close failed", "err", err)
		}
	}()

	r.enter(model.StateFetching)
	lookback := r.acct.LookbackDays
	if lookback <= 0 {
		lookback = s.cfg.LookbackDays
	}
	to := s.now().UTC()
	from := to.AddDate(0, 0, -lookback)

	raws, err := session.FetchClosedDeals(ctx, from, to)
	if err != nil {
		return r.fail(model.KindConnection, err)
	}
	r.result.Fetched = len(raws)
	if len(raws) == 0 {
		r.enter(model.StateDone)
		return r.result
	}

	batch := normalize.NormalizeBatch(raws, r.acct.Name)
	r.result.Failures = append(r.result.Failures, batch.Failures...)
	r.result.Failed += len(batch.Failures)
	r.result.Duplicate += batch.Duplicates
	for _, f := range batch.Failures {
		r.logger.Warn("dropping malformed deal", "ticket", f.TicketID, "err", f.Message)
	}

	r.enter(model.StateDeduplicating)
	names := s.mapper.Names()
	index := dedup.New(s.store, dedup.Config{
		DatabaseID:      s.cfg.DatabaseID,
		TicketProperty:  names.TicketID,
		AccountProperty: names.Account,
		BatchSize:       s.cfg.QueryBatchSize,
	}, r.acct.Name, schema, r.logger)

	tickets := make([]int64, len(batch.Trades))
	for i, t := range batch.Trades {
		tickets[i] = t.TicketID
	}
	existing, err := index.Existing(ctx, tickets)
	if err != nil {
		return r.fail(model.KindDuplicateCheck, err)
	}

	fresh := batch.Trades[:0:0]
	for _, t := range batch.Trades {
		if _, ok := existing[t.TicketID]; ok {
			r.result.Duplicate++
			continue
		}
		fresh = append(fresh, t)
	}

	r.enter(model.StateMapping)
	sets := make([]model.PropertyWriteSet, 0, len(fresh))
	for _, t := range fresh {
		set, err := s.mapper.Map(t, schema)
		if err != nil {
			return r.fail(model.KindSchema, err)
		}
		sets = append(sets, set)
	}

	if len(sets) > 0 {
		r.enter(model.StateWriting)
		for _, o := range s.writer.Create(ctx, sets) {
			switch o.Status {
			case writer.StatusCreated:
				r.result.Created++
				index.MarkCreated(o.TicketID)
			case writer.StatusSkipped:
				r.result.Failed++
				r.result.Failures = append(r.result.Failures, model.Failure{
					TicketID: o.TicketID,
					Kind:     model.KindCanceled,
					Message:  o.Reason,
				})
			default:
				r.result.Failed++
				r.result.Failures = append(r.result.Failures, model.Failure{
					TicketID: o.TicketID,
					Kind:     o.Kind,
					Message:  o.Reason,
				})
			}
		}
	}

	r.enter(model.StateDone)
	return r.result
}
