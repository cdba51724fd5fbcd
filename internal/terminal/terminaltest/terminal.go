// Package terminaltest provides a scripted terminal for tests.
package terminaltest

import (
	"context"
	"sync"
	"time"

	"github.com/rickgao/tradesync/internal/model"
	"github.com/rickgao/tradesync/internal/terminal"
)

// Terminal serves canned deals per login.
type Terminal struct {
	mu sync.Mutex

	// Deals by account login.
	Deals map[int64][]model.RawDeal
	// LoginErr by account login.
	LoginErr map[int64]error
	// FetchErr by account login.
	FetchErr map[int64]error

	Logins  int
	Opened  int
	Closed  int
	Windows [][2]time.Time
}

// New creates an empty terminal.
func New() *Terminal {
	return &Terminal{
		Deals:    make(map[int64][]model.RawDeal),
		LoginErr: make(map[int64]error),
		FetchErr: make(map[int64]error),
	}
}

// Login opens a session unless a login error is scripted.
func (t *Terminal) Login(ctx context.Context, creds terminal.Credentials) (terminal.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Logins++
	if err := t.LoginErr[creds.Login]; err != nil {
		return nil, err
	}
	t.Opened++
	return &session{t: t, login: creds.Login}, nil
}

// Open returns the number of sessions not yet closed.
func (t *Terminal) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Opened - t.Closed
}

type session struct {
	t     *Terminal
	login int64
}

func (s *session) Account() terminal.AccountInfo {
	return terminal.AccountInfo{Login: s.login}
}

func (s *session) FetchClosedDeals(ctx context.Context, from, to time.Time) ([]model.RawDeal, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	s.t.Windows = append(s.t.Windows, [2]time.Time{from, to})
	if err := s.t.FetchErr[s.login]; err != nil {
		return nil, err
	}
	return append([]model.RawDeal(nil), s.t.Deals[s.login]...), nil
}

func (s *session) Close() error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.Closed++
	return nil
}

// Deal builds a minimal valid closed deal.
func Deal(ticket int64, symbol string, closeTime time.Time, profit float64) model.RawDeal {
	open := closeTime.Add(-time.Hour).Unix()
	closed := closeTime.Unix()
	return model.RawDeal{
		Ticket:     model.Ptr(ticket),
		Symbol:     symbol,
		Type:       model.Ptr(model.DealTypeBuy),
		OpenTime:   &open,
		CloseTime:  &closed,
		Volume:     model.Ptr(0.1),
		OpenPrice:  model.Ptr(1.1),
		ClosePrice: model.Ptr(1.2),
		Profit:     model.Ptr(profit),
		Commission: model.Ptr(0.0),
		Swap:       model.Ptr(0.0),
	}
}
