package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Trade
// -----------------------------------------------------------------------------

// Side is the direction of the deal that opened a position.
type Side int

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// MT5 deal type codes (DEAL_TYPE_BUY, DEAL_TYPE_SELL).
const (
	DealTypeBuy  int64 = 0
	DealTypeSell int64 = 1
)

// SideFromDealType maps a terminal deal type code to a Side.
func SideFromDealType(code int64) Side {
	switch code {
	case DealTypeBuy:
		return SideBuy
	case DealTypeSell:
		return SideSell
	default:
		return SideUnknown
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "Buy"
	case SideSell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// Trade is one closed trade. Values are built by the normalizer and passed
// by value afterwards; nothing mutates a Trade once constructed.
type Trade struct {
	TicketID    int64  // Primary dedup key (exit deal ticket)
	PositionID  *int64 // Broker position ID, nil if not reported
	OrderID     *int64 // Broker order ID, nil if not reported
	MagicNumber *int64 // Expert advisor magic number, nil if not reported
	AccountName string // Configured account label
	Symbol      string // Instrument (e.g. "EURUSD")
	Side        Side

	OpenTime  time.Time // UTC
	CloseTime time.Time // UTC, never before OpenTime

	Volume     decimal.Decimal // Lots, >= 0
	OpenPrice  decimal.Decimal // >= 0
	ClosePrice decimal.Decimal // >= 0

	Profit     decimal.Decimal
	Commission decimal.Decimal
	Swap       decimal.Decimal
	NetProfit  decimal.Decimal // Profit + Commission + Swap

	StopLoss   *decimal.Decimal // nil = not set
	TakeProfit *decimal.Decimal // nil = not set

	Comment     string
	CloseReason string
}

// Label returns the human-readable title used for the journal entry,
// e.g. "EURUSD Buy #101".
func (t Trade) Label() string {
	return fmt.Sprintf("%s %s #%d", t.Symbol, t.Side, t.TicketID)
}

// -----------------------------------------------------------------------------
// Terminal records
// -----------------------------------------------------------------------------

// RawDeal is a closed-deal record as reported by the trading terminal.
// Every numeric field may be absent; timestamps are epoch seconds.
type RawDeal struct {
	Ticket     *int64 `json:"ticket"`
	PositionID *int64 `json:"position_id"`
	OrderID    *int64 `json:"order"`
	Magic      *int64 `json:"magic"`
	Symbol     string `json:"symbol"`
	Type       *int64 `json:"type"`   // Deal type code of the opening deal
	Reason     *int64 `json:"reason"` // Deal reason code of the closing deal

	OpenTime  *int64 `json:"open_time"`
	CloseTime *int64 `json:"close_time"`

	Volume     *float64 `json:"volume"`
	OpenPrice  *float64 `json:"open_price"`
	ClosePrice *float64 `json:"close_price"`
	Profit     *float64 `json:"profit"`
	Commission *float64 `json:"commission"`
	Swap       *float64 `json:"swap"`
	NetProfit  *float64 `json:"net_profit,omitempty"` // Ignored, always recomputed
	StopLoss   *float64 `json:"sl"`
	TakeProfit *float64 `json:"tp"`

	Comment     string `json:"comment"`
	CloseReason string `json:"close_reason"`
}

// Ptr returns a pointer to v. Handy for building RawDeal values.
func Ptr[T any](v T) *T {
	return &v
}
