// Package mapper converts trades into property writes for a described schema.
package mapper

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/tradesync/internal/model"
)

// textDateLayout is used when a date field lands in a text property.
const textDateLayout = "2006-01-02 15:04:05"

// Mapper builds property write sets. It is stateless and safe for concurrent use.
type Mapper struct {
	names Names
}

// New creates a mapper for the given property names.
func New(names Names) *Mapper {
	return &Mapper{names: names}
}

// Names returns the property names in use.
func (m *Mapper) Names() Names {
	return m.names
}

// Validate checks that the schema can hold trades: exactly one title property
// and a number-kind ticket property that is not the title.
func (m *Mapper) Validate(schema model.SchemaDescriptor) error {
	_, err := m.titleProperty(schema)
	return err
}

func (m *Mapper) titleProperty(schema model.SchemaDescriptor) (string, error) {
	titles := schema.TitleProperties()
	switch len(titles) {
	case 0:
		return "", model.Errorf(model.KindSchema, "validate schema", "database has no title property")
	case 1:
	default:
		return "", model.Errorf(model.KindSchema, "validate schema",
			"database has %d title properties %q, want exactly one", len(titles), titles)
	}
	title := titles[0]

	kind, ok := schema.Kind(m.names.TicketID)
	switch {
	case !ok:
		return "", model.Errorf(model.KindSchema, "validate schema",
			"ticket property %q not found", m.names.TicketID)
	case m.names.TicketID == title:
		return "", model.Errorf(model.KindSchema, "validate schema",
			"ticket property %q is the title property, it must be a number", m.names.TicketID)
	case kind != model.KindNumber:
		return "", model.Errorf(model.KindSchema, "validate schema",
			"ticket property %q has kind %s, want number", m.names.TicketID, kind)
	}

	return title, nil
}

// value is one trade field before it is fitted to a property kind.
type value struct {
	text    string
	number  *decimal.Decimal
	date    *time.Time
	numeric bool
	isDate  bool
}

func textValue(s string) value { return value{text: s} }

func numberValue(d *decimal.Decimal) value { return value{number: d, numeric: true} }

func intValue(n *int64) value {
	if n == nil {
		return numberValue(nil)
	}
	d := decimal.NewFromInt(*n)
	return numberValue(&d)
}

func decimalValue(d decimal.Decimal) value { return numberValue(&d) }

func dateValue(t time.Time) value {
	if t.IsZero() {
		return value{isDate: true}
	}
	return value{date: &t, isDate: true}
}

// Map builds the write set for one trade. Fields whose property is absent
// from the schema, read-only, or of an incompatible kind are skipped.
func (m *Mapper) Map(trade model.Trade, schema model.SchemaDescriptor) (model.PropertyWriteSet, error) {
	title, err := m.titleProperty(schema)
	if err != nil {
		if e, ok := err.(*model.Error); ok {
			e.TicketID = trade.TicketID
		}
		return model.PropertyWriteSet{}, err
	}

	label := trade.Label()
	set := model.PropertyWriteSet{
		TicketID: trade.TicketID,
		Account:  trade.AccountName,
		Title:    label,
		Writes:   []model.PropertyWrite{{Name: title, Kind: model.KindTitle, Text: label}},
	}

	n := m.names
	ticket := trade.TicketID
	fields := []struct {
		name string
		val  value
	}{
		{n.Account, textValue(trade.AccountName)},
		{n.Symbol, textValue(trade.Symbol)},
		{n.Side, textValue(trade.Side.String())},
		{n.OpenTime, dateValue(trade.OpenTime)},
		{n.CloseTime, dateValue(trade.CloseTime)},
		{n.Volume, decimalValue(trade.Volume)},
		{n.OpenPrice, decimalValue(trade.OpenPrice)},
		{n.ClosePrice, decimalValue(trade.ClosePrice)},
		{n.Profit, decimalValue(trade.Profit)},
		{n.Commission, decimalValue(trade.Commission)},
		{n.Swap, decimalValue(trade.Swap)},
		{n.NetProfit, decimalValue(trade.NetProfit)},
		{n.StopLoss, numberValue(trade.StopLoss)},
		{n.TakeProfit, numberValue(trade.TakeProfit)},
		{n.StopLossPrice, numberValue(trade.StopLoss)},
		{n.TakeProfitPrice, numberValue(trade.TakeProfit)},
		{n.TicketID, intValue(&ticket)},
		{n.PositionID, intValue(trade.PositionID)},
		{n.OrderID, intValue(trade.OrderID)},
		{n.MagicNumber, intValue(trade.MagicNumber)},
		{n.Comment, textValue(trade.Comment)},
		{n.CloseReason, textValue(trade.CloseReason)},
	}

	seen := map[string]bool{title: true}
	for _, f := range fields {
		if f.name == "" || seen[f.name] {
			continue
		}
		kind, ok := schema.Kind(f.name)
		if !ok || kind.IsReadOnly() {
			continue
		}
		w, ok := coerce(f.name, kind, f.val)
		if !ok {
			continue
		}
		seen[f.name] = true
		set.Writes = append(set.Writes, w)
	}

	sort.Slice(set.Writes, func(i, j int) bool {
		return set.Writes[i].Name < set.Writes[j].Name
	})

	return set, nil
}

// coerce fits a value to the property kind declared by the schema.
func coerce(name string, kind model.PropertyKind, v value) (model.PropertyWrite, bool) {
	w := model.PropertyWrite{Name: name, Kind: kind}

	switch {
	case v.numeric:
		switch kind {
		case model.KindNumber:
			if v.number != nil {
				f := v.number.InexactFloat64()
				w.Number = &f
			}
			return w, true
		case model.KindRichText:
			if v.number != nil {
				w.Text = v.number.String()
			}
			return w, true
		}

	case v.isDate:
		switch kind {
		case model.KindDate:
			w.Date = v.date
			return w, true
		case model.KindRichText:
			if v.date != nil {
				w.Text = v.date.UTC().Format(textDateLayout)
			}
			return w, true
		}

	default:
		switch kind {
		case model.KindTitle:
			// Only one title property exists and it carries the label.
			return w, false
		case model.KindRichText, model.KindSelect, model.KindMultiSelect, model.KindURL:
			w.Text = v.text
			return w, true
		}
	}

	return w, false
}
