package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rickgao/tradesync/internal/model"
	"github.com/rickgao/tradesync/internal/notion"
)

// Creator creates journal pages.
type Creator interface {
	CreatePage(ctx context.Context, databaseID string, set model.PropertyWriteSet) (string, error)
}

// Config configures the Writer.
type Config struct {
	DatabaseID   string
	Concurrency  int           // Max requests in flight across all accounts
	Backoff      BackoffPolicy // Retry schedule
	DrainTimeout time.Duration // How long a batch may keep writing after cancellation
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:  3,
		Backoff:      DefaultBackoffPolicy(),
		DrainTimeout: 30 * time.Second,
	}
}

// Status is the result of writing one entry.
type Status int

const (
	StatusCreated Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result for one entry.
type Outcome struct {
	TicketID int64
	Status   Status
	PageID   string          // Set when Created
	Reason   string          // Why the entry was skipped or failed
	Kind     model.ErrorKind // Set when Failed
	Attempts int             // Requests made for this entry
	Err      error
}

// Stats are cumulative writer counters.
type Stats struct {
	InFlight  int64
	Created   int64
	Failed    int64
	Skipped   int64
	Retries   int64
	Throttled int64
}

// Writer is the only component that writes to the journal. One instance is
// shared by every account so the request cap is global.
type Writer struct {
	store   Creator
	cfg     Config
	logger  *slog.Logger
	sem     *semaphore.Weighted
	sleeper Sleeper

	inFlight  atomic.Int64
	created   atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	retries   atomic.Int64
	throttled atomic.Int64
}

// Option configures a Writer.
type Option func(*Writer)

// WithSleeper replaces the clock used between retries.
func WithSleeper(s Sleeper) Option {
	return func(w *Writer) {
		w.sleeper = s
	}
}

// New creates a Writer.
func New(store Creator, cfg Config, logger *slog.Logger, opts ...Option) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	if cfg.Backoff == (BackoffPolicy{}) {
		cfg.Backoff = def.Backoff
	}
	cfg.Backoff = cfg.Backoff.withDefaults()

	w := &Writer{
		store:   store,
		cfg:     cfg,
		logger:  logger.With("component", "writer"),
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		sleeper: timerSleeper{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	return Stats{
		InFlight:  w.inFlight.Load(),
		Created:   w.created.Load(),
		Failed:    w.failed.Load(),
		Skipped:   w.skipped.Load(),
		Retries:   w.retries.Load(),
		Throttled: w.throttled.Load(),
	}
}

// Create writes entries and returns one outcome per entry, in input order.
// Requests start in input order with up to Concurrency in flight. If ctx is
// canceled partway through, the rest of the batch keeps going for at most
// DrainTimeout; entries still unwritten at that point are Skipped. A ctx that
// is already canceled on entry skips the whole batch.
func (w *Writer) Create(ctx context.Context, entries []model.PropertyWriteSet) []Outcome {
	out := make([]Outcome, len(entries))
	if ctx.Err() != nil {
		for i, e := range entries {
			out[i] = w.skip(e.TicketID, 0, "canceled")
		}
		return out
	}

	batchCtx, release := w.drainContext(ctx, len(entries))
	defer release()

	var wg sync.WaitGroup
	for i, e := range entries {
		// The first attempt's slot is taken here so starts follow input order.
		if err := w.sem.Acquire(batchCtx, 1); err != nil {
			out[i] = w.skip(e.TicketID, 0, "canceled")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = w.write(batchCtx, e)
		}()
	}
	wg.Wait()
	return out
}

// drainContext returns a context that is not canceled with ctx but instead
// ends DrainTimeout after ctx is. release stops the drain timer.
func (w *Writer) drainContext(ctx context.Context, pending int) (context.Context, func()) {
	batchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	var (
		mu       sync.Mutex
		timer    *time.Timer
		released bool
	)
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if released {
			return
		}
		w.logger.Info("draining write batch",
			"entries", pending,
			"timeout", w.cfg.DrainTimeout,
		)
		timer = time.AfterFunc(w.cfg.DrainTimeout, cancel)
	})

	return batchCtx, func() {
		stop()
		mu.Lock()
		released = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		cancel()
	}
}

// write runs the retry loop for one entry. The caller holds a semaphore slot
// for the first attempt; write releases it.
func (w *Writer) write(ctx context.Context, entry model.PropertyWriteSet) Outcome {
	policy := w.cfg.Backoff
	var lastErr error
	var throttled bool

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt)
			var apiErr *notion.APIError
			if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > delay {
				delay = apiErr.RetryAfter
			}

			w.retries.Add(1)
			w.logger.Debug("retrying page create",
				"ticket", entry.TicketID,
				"attempt", attempt,
				"delay", delay,
				"throttled", throttled,
			)

			if err := w.sleeper.Sleep(ctx, delay); err != nil {
				return w.skip(entry.TicketID, attempt, "canceled")
			}
			if err := w.sem.Acquire(ctx, 1); err != nil {
				return w.skip(entry.TicketID, attempt, "canceled")
			}
		}

		pageID, err := w.send(ctx, entry)
		w.sem.Release(1)

		if err == nil {
			w.created.Add(1)
			w.logger.Debug("page created",
				"ticket", entry.TicketID,
				"account", entry.Account,
				"page", pageID,
				"attempts", attempt+1,
			)
			return Outcome{TicketID: entry.TicketID, Status: StatusCreated, PageID: pageID, Attempts: attempt + 1}
		}
		if ctx.Err() != nil {
			return w.skip(entry.TicketID, attempt+1, "canceled")
		}

		lastErr = err
		throttled = false

		switch {
		case isThrottled(err):
			throttled = true
			w.throttled.Add(1)
		case isTransient(err):
		default:
			return w.fail(entry.TicketID, attempt+1, model.KindOf(err), err)
		}
	}

	attempts := policy.MaxRetries + 1
	if throttled {
		return w.fail(entry.TicketID, attempts, model.KindRateLimitExceeded,
			fmt.Errorf("still throttled after %d attempts: %w", attempts, lastErr))
	}
	return w.fail(entry.TicketID, attempts, model.KindWrite,
		fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr))
}

func (w *Writer) send(ctx context.Context, entry model.PropertyWriteSet) (string, error) {
	w.inFlight.Add(1)
	defer w.inFlight.Add(-1)

	return w.store.CreatePage(ctx, w.cfg.DatabaseID, entry)
}

func (w *Writer) skip(ticket int64, attempts int, reason string) Outcome {
	w.skipped.Add(1)
	return Outcome{TicketID: ticket, Status: StatusSkipped, Reason: reason, Attempts: attempts}
}

func (w *Writer) fail(ticket int64, attempts int, kind model.ErrorKind, err error) Outcome {
	w.failed.Add(1)
	switch kind {
	case "":
		kind = model.KindWrite
	case model.KindRateLimit:
		kind = model.KindRateLimitExceeded
	}
	w.logger.Warn("page create failed",
		"ticket", ticket,
		"kind", kind,
		"attempts", attempts,
		"err", err,
	)
	return Outcome{
		TicketID: ticket,
		Status:   StatusFailed,
		Reason:   err.Error(),
		Kind:     kind,
		Attempts: attempts,
		Err:      err,
	}
}

func isThrottled(err error) bool {
	if errors.Is(err, model.ErrRateLimit) {
		return true
	}
	var apiErr *notion.APIError
	return errors.As(err, &apiErr) && apiErr.IsRateLimited()
}

// isTransient reports server-side and network failures worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *notion.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
