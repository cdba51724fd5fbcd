package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/tradesync/internal/model"
	"github.com/rickgao/tradesync/internal/notion"
)

// fakeSleeper records requested delays without waiting.
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

// scriptedStore fails each ticket with the scripted errors before succeeding.
type scriptedStore struct {
	mu      sync.Mutex
	script  map[int64][]error
	calls   map[int64]int
	created []int64
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{script: map[int64][]error{}, calls: map[int64]int{}}
}

func (s *scriptedStore) CreatePage(ctx context.Context, databaseID string, set model.PropertyWriteSet) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.calls[set.TicketID]
	s.calls[set.TicketID] = n + 1
	if errs := s.script[set.TicketID]; n < len(errs) {
		return "", errs[n]
	}
	s.created = append(s.created, set.TicketID)
	return fmt.Sprintf("page-%d", set.TicketID), nil
}

func throttle(retryAfter time.Duration) error {
	return &model.Error{Kind: model.KindRateLimit, Op: "create page", Err: &notion.APIError{
		StatusCode: http.StatusTooManyRequests,
		Code:       "rate_limited",
		RetryAfter: retryAfter,
	}}
}

func repeat(err error, n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = err
	}
	return out
}

func entries(tickets ...int64) []model.PropertyWriteSet {
	out := make([]model.PropertyWriteSet, len(tickets))
	for i, t := range tickets {
		out[i] = model.PropertyWriteSet{TicketID: t, Account: "Main"}
	}
	return out
}

func TestBackoffPolicy_Delay(t *testing.T) {
	p := DefaultBackoffPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 350 * time.Millisecond},
		{2, 700 * time.Millisecond},
		{3, 1400 * time.Millisecond},
		{5, 5600 * time.Millisecond},
		{6, 10 * time.Second},
		{20, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "Delay(%d)", tt.attempt)
	}
}

func TestWriter_ThrottledThenCreated(t *testing.T) {
	store := newScriptedStore()
	store.script[1] = repeat(throttle(0), 4)
	sleeper := &fakeSleeper{}

	w := New(store, Config{DatabaseID: "db1"}, nil, WithSleeper(sleeper))
	out := w.Create(context.Background(), entries(1))

	require.Len(t, out, 1)
	assert.Equal(t, StatusCreated, out[0].Status)
	assert.Equal(t, 5, out[0].Attempts)
	assert.Equal(t, []time.Duration{
		350 * time.Millisecond,
		700 * time.Millisecond,
		1400 * time.Millisecond,
		2800 * time.Millisecond,
	}, sleeper.delays)

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Created)
	assert.Equal(t, int64(4), stats.Throttled)
	assert.Equal(t, int64(4), stats.Retries)
	assert.Equal(t, int64(0), stats.InFlight)
}

func TestWriter_RateLimitExceeded(t *testing.T) {
	store := newScriptedStore()
	store.script[1] = repeat(throttle(0), 6)

	w := New(store, Config{}, nil, WithSleeper(&fakeSleeper{}))
	out := w.Create(context.Background(), entries(1))

	assert.Equal(t, StatusFailed, out[0].Status)
	assert.Equal(t, model.KindRateLimitExceeded, out[0].Kind)
	assert.Equal(t, 6, out[0].Attempts)
	assert.Equal(t, 6, store.calls[1])
	assert.Empty(t, store.created)
}

func TestWriter_RetryAfterHonoured(t *testing.T) {
	store := newScriptedStore()
	store.script[1] = []error{throttle(3 * time.Second)}
	sleeper := &fakeSleeper{}

	w := New(store, Config{}, nil, WithSleeper(sleeper))
	out := w.Create(context.Background(), entries(1))

	assert.Equal(t, StatusCreated, out[0].Status)
	assert.Equal(t, []time.Duration{3 * time.Second}, sleeper.delays)
}

func TestWriter_NonRetryableFailsFast(t *testing.T) {
	store := newScriptedStore()
	store.script[2] = []error{&model.Error{Kind: model.KindWrite, Err: &notion.APIError{StatusCode: 400, Code: "validation_error"}}}

	w := New(store, Config{Concurrency: 1}, nil, WithSleeper(&fakeSleeper{}))
	out := w.Create(context.Background(), entries(1, 2, 3))

	require.Len(t, out, 3)
	assert.Equal(t, StatusCreated, out[0].Status)
	assert.Equal(t, StatusFailed, out[1].Status)
	assert.Equal(t, model.KindWrite, out[1].Kind)
	assert.Equal(t, 1, out[1].Attempts)
	assert.Equal(t, StatusCreated, out[2].Status)
	assert.Equal(t, []int64{1, 3}, store.created, "input order preserved")
}

func TestWriter_TransientRetried(t *testing.T) {
	store := newScriptedStore()
	store.script[1] = []error{
		&model.Error{Kind: model.KindWrite, Err: &url.Error{Op: "Post", URL: "x", Err: errors.New("connection reset")}},
		&model.Error{Kind: model.KindWrite, Err: &notion.APIError{StatusCode: 502}},
	}

	w := New(store, Config{}, nil, WithSleeper(&fakeSleeper{}))
	out := w.Create(context.Background(), entries(1))

	assert.Equal(t, StatusCreated, out[0].Status)
	assert.Equal(t, 3, out[0].Attempts)
}

func TestWriter_TransientExhausted(t *testing.T) {
	store := newScriptedStore()
	store.script[1] = repeat(&model.Error{Kind: model.KindWrite, Err: &notion.APIError{StatusCode: 503}}, 10)

	w := New(store, Config{Backoff: BackoffPolicy{MaxRetries: 2}}, nil, WithSleeper(&fakeSleeper{}))
	out := w.Create(context.Background(), entries(1))

	assert.Equal(t, StatusFailed, out[0].Status)
	assert.Equal(t, model.KindWrite, out[0].Kind)
	assert.Equal(t, 3, out[0].Attempts)
}

func TestWriter_CanceledBatchDrains(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	store := &cancelingStore{cancel: cancel}
	w := New(store, Config{}, nil, WithSleeper(&fakeSleeper{}))
	out := w.Create(ctx, entries(1, 2, 3, 4))

	require.Len(t, out, 4)
	for i, o := range out {
		assert.Equal(t, StatusCreated, o.Status, "entry %d", i)
	}
	assert.Equal(t, int64(4), store.calls.Load())
	assert.Equal(t, int64(0), w.Stats().Skipped)
}

func TestWriter_CanceledBeforeStartSkipsAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newScriptedStore()
	w := New(store, Config{}, nil)
	out := w.Create(ctx, entries(1, 2))

	for _, o := range out {
		assert.Equal(t, StatusSkipped, o.Status)
		assert.Equal(t, "canceled", o.Reason)
	}
	assert.Empty(t, store.calls)
}

func TestWriter_DrainTimeoutSkipsUnwritten(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	store := &stallingStore{cancel: cancel}
	w := New(store, Config{Concurrency: 1, DrainTimeout: 20 * time.Millisecond}, nil,
		WithSleeper(&fakeSleeper{}))

	done := make(chan []Outcome)
	go func() { done <- w.Create(ctx, entries(1, 2, 3)) }()

	var out []Outcome
	select {
	case out = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not stop at the drain deadline")
	}

	require.Len(t, out, 3)
	assert.Equal(t, StatusCreated, out[0].Status)
	assert.Equal(t, StatusSkipped, out[1].Status, "request cut off by the deadline")
	assert.Equal(t, "canceled", out[1].Reason)
	assert.Equal(t, StatusSkipped, out[2].Status)
	assert.Equal(t, int64(2), w.Stats().Skipped)
	assert.Equal(t, int64(0), w.Stats().InFlight)
}

// cancelingStore cancels the caller's context while its first request is in flight.
type cancelingStore struct {
	cancel context.CancelFunc
	calls  atomic.Int64
}

func (s *cancelingStore) CreatePage(ctx context.Context, databaseID string, set model.PropertyWriteSet) (string, error) {
	s.calls.Add(1)
	s.cancel()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "page", nil
}

// stallingStore accepts the first request, cancels the caller, then hangs
// every later request until its context ends.
type stallingStore struct {
	cancel context.CancelFunc
	calls  atomic.Int64
}

func (s *stallingStore) CreatePage(ctx context.Context, databaseID string, set model.PropertyWriteSet) (string, error) {
	if s.calls.Add(1) == 1 {
		s.cancel()
		return "page", nil
	}
	<-ctx.Done()
	return "", ctx.Err()
}

// concurrencyStore tracks the peak number of simultaneous requests.
type concurrencyStore struct {
	current atomic.Int64
	peak    atomic.Int64
}

func (s *concurrencyStore) CreatePage(ctx context.Context, databaseID string, set model.PropertyWriteSet) (string, error) {
	n := s.current.Add(1)
	defer s.current.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return "page", nil
}

func TestWriter_SharedConcurrencyCap(t *testing.T) {
	store := &concurrencyStore{}
	w := New(store, Config{Concurrency: 2}, nil)

	var wg sync.WaitGroup
	for a := 0; a < 5; a++ {
		wg.Add(1)
		go func(a int) {
			defer wg.Done()
			base := int64(a * 10)
			out := w.Create(context.Background(), entries(base+1, base+2, base+3))
			for _, o := range out {
				assert.Equal(t, StatusCreated, o.Status)
			}
		}(a)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.peak.Load(), int64(2))
	assert.Equal(t, int64(15), w.Stats().Created)
}

func TestWriter_BatchRunsConcurrently(t *testing.T) {
	store := &concurrencyStore{}
	w := New(store, Config{Concurrency: 3}, nil)

	out := w.Create(context.Background(), entries(1, 2, 3, 4, 5, 6))

	require.Len(t, out, 6)
	for i, o := range out {
		assert.Equal(t, StatusCreated, o.Status)
		assert.Equal(t, int64(i+1), o.TicketID, "outcomes keep input order")
	}
	assert.Greater(t, store.peak.Load(), int64(1))
	assert.LessOrEqual(t, store.peak.Load(), int64(3))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "created", StatusCreated.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "unknown", Status(9).String())
}
