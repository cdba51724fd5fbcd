package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/tradesync/internal/model"
	"github.com/rickgao/tradesync/internal/syncer"
)

// AccountSyncer runs one account's cycle.
type AccountSyncer interface {
	SyncAccount(ctx context.Context, acct syncer.Account, schema model.SchemaDescriptor) model.AccountResult
}

// SchemaSource describes the journal database.
type SchemaSource interface {
	DescribeSchema(ctx context.Context, databaseID string) (model.SchemaDescriptor, error)
}

// SchemaValidator checks that a schema can hold trades.
type SchemaValidator interface {
	Validate(schema model.SchemaDescriptor) error
}

// Reporter receives every completed cycle.
type Reporter interface {
	Report(ctx context.Context, result model.CycleResult) error
}

// ReporterFunc is a function adapter for Reporter.
type ReporterFunc func(context.Context, model.CycleResult) error

func (f ReporterFunc) Report(ctx context.Context, r model.CycleResult) error {
	return f(ctx, r)
}

// Config holds scheduler configuration.
type Config struct {
	DatabaseID         string
	Interval           time.Duration // Time between cycle starts (default: 15m)
	AccountConcurrency int           // Accounts synced at once; 1 serializes (default: 1)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:           15 * time.Minute,
		AccountConcurrency: 1,
	}
}

// Scheduler runs sync cycles.
type Scheduler struct {
	cfg       Config
	accounts  []syncer.Account
	syncer    AccountSyncer
	schemas   SchemaSource
	validator SchemaValidator
	reporters []Reporter
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.RWMutex
	last   *model.CycleResult
	cycles int

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithReporter adds a cycle reporter.
func WithReporter(r Reporter) Option {
	return func(s *Scheduler) {
		s.reporters = append(s.reporters, r)
	}
}

// WithClock replaces the clock used for cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler.
func New(cfg Config, accounts []syncer.Account, runner AccountSyncer, schemas SchemaSource, validator SchemaValidator, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.AccountConcurrency <= 0 {
		cfg.AccountConcurrency = def.AccountConcurrency
	}
	s := &Scheduler{
		cfg:       cfg,
		accounts:  accounts,
		syncer:    runner,
		schemas:   schemas,
		validator: validator,
		now:       time.Now,
		logger:    logger.With("component", "scheduler"),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastResult returns the most recent cycle, if any.
func (s *Scheduler) LastResult() (model.CycleResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.CycleResult{}, false
	}
	return *s.last, true
}

// Cycles returns the number of completed cycles.
func (s *Scheduler) Cycles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

// RunOnce runs a single cycle. The error is non-nil only when the journal
// schema cannot hold trades, which no retry will fix.
func (s *Scheduler) RunOnce(ctx context.Context) (model.CycleResult, error) {
	result := model.CycleResult{
		ID:        uuid.New(),
		StartedAt: s.now(),
	}
	logger := s.logger.With("cycle", result.ID)
	logger.Debug("sync cycle starting", "accounts", len(s.accounts))

	schema, err := s.describe(ctx)
	switch {
	case errors.Is(err, model.ErrSchema):
		logger.Error("journal schema rejected", "err", err)
		return result, err
	case err != nil:
		kind := model.KindConnection
		if ctx.Err() != nil {
			kind = model.KindCanceled
		}
		logger.Warn("could not describe journal, skipping cycle", "err", err)
		result.Accounts = s.failAll(kind, err)
	default:
		result.Accounts = s.syncAll(ctx, schema)
	}

	result.FinishedAt = s.now()
	s.record(ctx, logger, result)

	for _, a := range result.Accounts {
		if a.Err != nil && a.Err.Kind == model.KindSchema {
			return result, model.Errorf(model.KindSchema, "sync "+a.Account, "%s", a.Err.Message)
		}
	}

	return result, nil
}

func (s *Scheduler) describe(ctx context.Context) (model.SchemaDescriptor, error) {
	schema, err := s.schemas.DescribeSchema(ctx, s.cfg.DatabaseID)
	if err != nil {
		return schema, err
	}
	if err := s.validator.Validate(schema); err != nil {
		return schema, err
	}
	return schema, nil
}

func (s *Scheduler) failAll(kind model.ErrorKind, err error) []model.AccountResult {
	out := make([]model.AccountResult, len(s.accounts))
	for i, acct := range s.accounts {
		out[i] = model.AccountResult{
			Account:   acct.Name,
			State:     model.StateFailed,
			FailedAt:  model.StateIdle,
			Err:       &model.Failure{Kind: kind, Message: err.Error()},
			StartedAt: s.now(),
		}
	}
	return out
}

// syncAll runs every account; one account's failure never stops another.
func (s *Scheduler) syncAll(ctx context.Context, schema model.SchemaDescriptor) []model.AccountResult {
	out := make([]model.AccountResult, len(s.accounts))

	var g errgroup.Group
	g.SetLimit(s.cfg.AccountConcurrency)

	for i, acct := range s.accounts {
		g.Go(func() error {
			out[i] = s.syncer.SyncAccount(ctx, acct, schema)
			return nil
		})
	}
	g.Wait()

	return out
}

func (s *Scheduler) record(ctx context.Context, logger *slog.Logger, result model.CycleResult) {
	s.mu.Lock()
	s.last = &result
	s.cycles++
	s.mu.Unlock()

	totals := result.Totals()
	logger.Info("sync cycle complete",
		"accounts", totals.Accounts,
		"failed_accounts", totals.FailedAccounts,
		"fetched", totals.Fetched,
		"duplicate", totals.Duplicate,
		"created", totals.Created,
		"failed", totals.Failed,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)

	// Reporters run even after cancellation so the final cycle is recorded.
	rctx := context.WithoutCancel(ctx)
	for _, r := range s.reporters {
		if err := r.Report(rctx, result); err != nil {
			logger.Warn("cycle report failed", "err", err)
		}
	}
}

// Run runs a cycle immediately and then one per interval until ctx is
// canceled. It returns nil on cancellation, after the cycle in progress
// finishes, and the schema error if the journal cannot hold trades.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval,
		"accounts", len(s.accounts),
		"account_concurrency", s.cfg.AccountConcurrency,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
		// A tick that races cancellation must not start another cycle.
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped", "cycles", s.Cycles())
			return nil
		}
	}
}

// Start runs the scheduler in the background. It must be called at most once.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)
		if err := s.Run(ctx); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()

	return nil
}

// Stop cancels the scheduler and waits for the cycle in progress. It returns
// the error that stopped the scheduler on its own, if any.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done returns a channel closed when the background scheduler exits. It is
// never closed if Start was not called.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}
