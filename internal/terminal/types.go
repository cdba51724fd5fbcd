package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/tradesync/internal/model"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrSessionClosed = errors.New("session closed")
)

// Credentials identify one trading account on its terminal.
type Credentials struct {
	Login    int64
	Password string
	Server   string
	Path     string // Terminal installation path, passed through to the bridge
}

// Terminal opens authenticated sessions.
type Terminal interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
}

// Session is an authenticated terminal connection.
type Session interface {
	// Account returns the account info reported at login.
	Account() AccountInfo

	// FetchClosedDeals returns closed deals with a close time in [from, to].
	FetchClosedDeals(ctx context.Context, from, to time.Time) ([]model.RawDeal, error)

	// Close releases the connection.
	Close() error
}

// Request is a command sent to the bridge.
type Request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response is a command response from the bridge.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
}

// RemoteError is an error reported by the bridge.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge error %s: %s", e.Code, e.Message)
}

// IsAuthFailure reports whether the bridge rejected the credentials.
func (e *RemoteError) IsAuthFailure() bool {
	switch e.Code {
	case "auth_failed", "invalid_account", "invalid_credentials", "unauthorized":
		return true
	}
	return false
}

// LoginParams are parameters for the login method.
type LoginParams struct {
	Login    int64  `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
	Path     string `json:"path,omitempty"`
}

// HistoryParams are parameters for the history_deals method.
type HistoryParams struct {
	From int64 `json:"from"` // Unix seconds
	To   int64 `json:"to"`   // Unix seconds
}

// AccountInfo is the login result.
type AccountInfo struct {
	Login    int64   `json:"login"`
	Name     string  `json:"name"`
	Server   string  `json:"server"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

// Deal entry codes (DEAL_ENTRY_*).
const (
	EntryIn    int64 = 0
	EntryOut   int64 = 1
	EntryInOut int64 = 2
	EntryOutBy int64 = 3
)

// HistoryDeal is one deal from the terminal's history.
type HistoryDeal struct {
	Ticket     int64   `json:"ticket"`
	Order      int64   `json:"order"`
	Time       int64   `json:"time"` // Unix seconds
	Type       int64   `json:"type"`
	Entry      int64   `json:"entry"`
	Magic      int64   `json:"magic"`
	PositionID int64   `json:"position_id"`
	Reason     int64   `json:"reason"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`
	Profit     float64 `json:"profit"`
	SL         float64 `json:"sl"`
	TP         float64 `json:"tp"`
	Symbol     string  `json:"symbol"`
	Comment    string  `json:"comment"`
}

// BridgeConfig configures a bridge connection.
type BridgeConfig struct {
	URL              string        // ws:// or wss:// bridge endpoint
	Token            string        // Optional bearer token for the bridge
	HandshakeTimeout time.Duration // Dial timeout
	RequestTimeout   time.Duration // Per-call deadline when ctx has none sooner
	PingInterval     time.Duration // Keepalive ping interval
}

// DefaultBridgeConfig returns sensible defaults.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		HandshakeTimeout: 10 * time.Second,
		RequestTimeout:   60 * time.Second,
		PingInterval:     30 * time.Second,
	}
}
