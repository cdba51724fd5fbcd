package mapper

import (
	"fmt"
	"sort"
	"strings"
)

// Names are the journal property names each trade field is written to.
type Names struct {
	Account         string
	Symbol          string
	Side            string
	OpenTime        string
	CloseTime       string
	Volume          string
	OpenPrice       string
	ClosePrice      string
	Profit          string
	Commission      string
	Swap            string
	NetProfit       string
	StopLoss        string
	TakeProfit      string
	StopLossPrice   string
	TakeProfitPrice string
	TicketID        string
	PositionID      string
	OrderID         string
	MagicNumber     string
	Comment         string
	CloseReason     string
}

// DefaultNames returns the property names of the standard trading journal layout.
func DefaultNames() Names {
	return Names{
		Account:         "Overall",
		Symbol:          "Pair",
		Side:            "Type",
		OpenTime:        "Open",
		CloseTime:       "Close",
		Volume:          "Volume",
		OpenPrice:       "Open Price",
		ClosePrice:      "Close Price",
		Profit:          "Profit",
		Commission:      "Commission",
		Swap:            "SWAP",
		NetProfit:       "Net Profit",
		StopLoss:        "SL",
		TakeProfit:      "TP",
		StopLossPrice:   "S/L Price",
		TakeProfitPrice: "T/P Price",
		TicketID:        "Ticket ID",
		PositionID:      "Position ID",
		OrderID:         "Order ID",
		MagicNumber:     "Magic Number",
		Comment:         "Comment",
		CloseReason:     "Close Reason",
	}
}

func (n *Names) fields() map[string]*string {
	return map[string]*string{
		"account":           &n.Account,
		"symbol":            &n.Symbol,
		"side":              &n.Side,
		"open_time":         &n.OpenTime,
		"close_time":        &n.CloseTime,
		"volume":            &n.Volume,
		"open_price":        &n.OpenPrice,
		"close_price":       &n.ClosePrice,
		"profit":            &n.Profit,
		"commission":        &n.Commission,
		"swap":              &n.Swap,
		"net_profit":        &n.NetProfit,
		"stop_loss":         &n.StopLoss,
		"take_profit":       &n.TakeProfit,
		"stop_loss_price":   &n.StopLossPrice,
		"take_profit_price": &n.TakeProfitPrice,
		"ticket_id":         &n.TicketID,
		"position_id":       &n.PositionID,
		"order_id":          &n.OrderID,
		"magic_number":      &n.MagicNumber,
		"comment":           &n.Comment,
		"close_reason":      &n.CloseReason,
	}
}

// WithOverrides returns a copy of n with the given fields renamed. Keys are
// snake_case field names (e.g. "ticket_id"). An empty value disables the field,
// except ticket_id which is required for duplicate detection.
func (n Names) WithOverrides(overrides map[string]string) (Names, error) {
	out := n
	fields := out.fields()

	var unknown []string
	for key, name := range overrides {
		ptr, ok := fields[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		*ptr = strings.TrimSpace(name)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return n, fmt.Errorf("unknown property fields: %s", strings.Join(unknown, ", "))
	}
	if out.TicketID == "" {
		return n, fmt.Errorf("ticket_id property name cannot be empty")
	}

	return out, nil
}

// FieldKeys returns the override keys accepted by WithOverrides, sorted.
func FieldKeys() []string {
	var n Names
	keys := make([]string, 0, 22)
	for k := range n.fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the property name configured for a field key. An empty
// name means the field is disabled.
func (n Names) Lookup(key string) (string, bool) {
	ptr, ok := n.fields()[key]
	if !ok {
		return "", false
	}
	return *ptr, true
}
