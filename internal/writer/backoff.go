package writer

import (
	"context"
	"math"
	"time"
)

// BackoffPolicy is the retry schedule for throttled and transient writes.
type BackoffPolicy struct {
	Base       time.Duration // Delay before the first retry
	Multiplier float64       // Growth factor per retry
	Max        time.Duration // Upper bound on a computed delay
	MaxRetries int           // Retries after the first attempt
}

// DefaultBackoffPolicy returns the default schedule: 350ms doubling up to 10s,
// five retries.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:       350 * time.Millisecond,
		Multiplier: 2,
		Max:        10 * time.Second,
		MaxRetries: 5,
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := float64(p.Base) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.Max > 0 && d > float64(p.Max) {
		return p.Max
	}
	return time.Duration(d)
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	def := DefaultBackoffPolicy()
	if p.Base <= 0 {
		p.Base = def.Base
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.Max <= 0 {
		p.Max = def.Max
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return p
}

// Sleeper waits between retries.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
