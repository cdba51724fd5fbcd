// Package normalize converts raw terminal deal records into Trade values.
package normalize

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/tradesync/internal/model"
)

// MT5 deal reason codes (DEAL_REASON_*).
const (
	ReasonClient   int64 = 0
	ReasonMobile   int64 = 1
	ReasonWeb      int64 = 2
	ReasonExpert   int64 = 3
	ReasonSL       int64 = 4
	ReasonTP       int64 = 5
	ReasonStopOut  int64 = 6
	ReasonRollover int64 = 7
)

// CloseReason returns the journal label for a deal reason code.
func CloseReason(code int64) string {
	switch code {
	case ReasonSL:
		return "Stop Loss"
	case ReasonTP:
		return "Take Profit"
	case ReasonStopOut:
		return "Stop Out"
	case ReasonExpert:
		return "Expert"
	default:
		return "Manual Close"
	}
}

// Normalize builds a Trade from one raw deal. It fails with a
// MalformedRecordError when the ticket is missing or non-positive, or when a
// quantity is negative.
func Normalize(raw model.RawDeal, account string) (model.Trade, error) {
	if raw.Ticket == nil || *raw.Ticket <= 0 {
		return model.Trade{}, model.NewError(model.KindMalformedRecord, "normalize",
			errors.New("missing or non-positive ticket id"))
	}
	ticket := *raw.Ticket

	volume := dec(raw.Volume)
	openPrice := dec(raw.OpenPrice)
	closePrice := dec(raw.ClosePrice)
	for _, q := range []decimal.Decimal{volume, openPrice, closePrice} {
		if q.IsNegative() {
			return model.Trade{}, &model.Error{
				Kind:     model.KindMalformedRecord,
				Op:       "normalize",
				TicketID: ticket,
				Err:      errors.New("negative volume or price"),
			}
		}
	}

	closeTime := epoch(raw.CloseTime)
	openTime := closeTime
	if raw.OpenTime != nil {
		openTime = epoch(raw.OpenTime)
	}
	if openTime.After(closeTime) {
		openTime = closeTime
	}

	side := model.SideUnknown
	if raw.Type != nil {
		side = model.SideFromDealType(*raw.Type)
	}

	reason := raw.CloseReason
	if reason == "" {
		var code int64 = ReasonClient
		if raw.Reason != nil {
			code = *raw.Reason
		}
		reason = CloseReason(code)
	}

	profit := dec(raw.Profit)
	commission := dec(raw.Commission)
	swap := dec(raw.Swap)

	return model.Trade{
		TicketID:    ticket,
		PositionID:  optionalID(raw.PositionID),
		OrderID:     optionalID(raw.OrderID),
		MagicNumber: optionalID(raw.Magic),
		AccountName: account,
		Symbol:      raw.Symbol,
		Side:        side,
		OpenTime:    openTime,
		CloseTime:   closeTime,
		Volume:      volume,
		OpenPrice:   openPrice,
		ClosePrice:  closePrice,
		Profit:      profit,
		Commission:  commission,
		Swap:        swap,
		NetProfit:   profit.Add(commission).Add(swap),
		StopLoss:    optionalLevel(raw.StopLoss),
		TakeProfit:  optionalLevel(raw.TakeProfit),
		Comment:     raw.Comment,
		CloseReason: reason,
	}, nil
}

// Batch is the result of normalizing one account's deal window.
type Batch struct {
	Trades     []model.Trade   // Ascending by close time, unique tickets
	Failures   []model.Failure // Malformed records
	Duplicates int             // Repeated tickets dropped from the input
}

// NormalizeBatch normalizes every deal, dropping malformed records and
// repeated tickets (first occurrence wins). Trades come back in ascending
// close time order, ties broken by ticket.
func NormalizeBatch(raws []model.RawDeal, account string) Batch {
	var b Batch
	seen := make(map[int64]struct{}, len(raws))

	for _, raw := range raws {
		t, err := Normalize(raw, account)
		if err != nil {
			b.Failures = append(b.Failures, model.FailureFrom(0, err))
			continue
		}
		if _, dup := seen[t.TicketID]; dup {
			b.Duplicates++
			continue
		}
		seen[t.TicketID] = struct{}{}
		b.Trades = append(b.Trades, t)
	}

	sort.SliceStable(b.Trades, func(i, j int) bool {
		a, c := b.Trades[i], b.Trades[j]
		if !a.CloseTime.Equal(c.CloseTime) {
			return a.CloseTime.Before(c.CloseTime)
		}
		return a.TicketID < c.TicketID
	})

	return b
}

func dec(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

func epoch(v *int64) time.Time {
	if v == nil {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(*v, 0).UTC()
}

// optionalID treats zero as "not reported", as the terminal does.
func optionalID(v *int64) *int64 {
	if v == nil || *v == 0 {
		return nil
	}
	id := *v
	return &id
}

func optionalLevel(v *float64) *decimal.Decimal {
	if v == nil || *v == 0 {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}
