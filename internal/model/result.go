package model

import (
	"time"

	"github.com/google/uuid"
)

// State is a step of the per-account sync state machine.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateFetching
	StateDeduplicating
	StateMapping
	StateWriting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateFetching:
		return "fetching"
	case StateDeduplicating:
		return "deduplicating"
	case StateMapping:
		return "mapping"
	case StateWriting:
		return "writing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure describes one thing that went wrong during a cycle.
type Failure struct {
	TicketID int64 // Zero for account-level failures
	Kind     ErrorKind
	Message  string
}

// AccountResult is one account's contribution to a cycle.
type AccountResult struct {
	Account  string
	State    State    // StateDone or StateFailed
	FailedAt State    // Step that failed, StateIdle when State is StateDone
	Err      *Failure // Account-level failure, nil unless State is StateFailed

	Fetched   int
	Duplicate int
	Created   int
	Failed    int
	Failures  []Failure

	StartedAt time.Time
	Duration  time.Duration
}

// OK reports whether the account reached StateDone.
func (r AccountResult) OK() bool {
	return r.State == StateDone
}

// Totals sums counts over several account results.
type Totals struct {
	Accounts       int
	FailedAccounts int
	Fetched        int
	Duplicate      int
	Created        int
	Failed         int
}

// CycleResult is the summary of one scheduler tick.
type CycleResult struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Accounts   []AccountResult
}

// Totals aggregates the per-account counts.
func (c CycleResult) Totals() Totals {
	t := Totals{Accounts: len(c.Accounts)}
	for _, a := range c.Accounts {
		if !a.OK() {
			t.FailedAccounts++
		}
		t.Fetched += a.Fetched
		t.Duplicate += a.Duplicate
		t.Created += a.Created
		t.Failed += a.Failed
	}
	return t
}

// Account returns the result for a named account.
func (c CycleResult) Account(name string) (AccountResult, bool) {
	for _, a := range c.Accounts {
		if a.Account == name {
			return a, true
		}
	}
	return AccountResult{}, false
}
