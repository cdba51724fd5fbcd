package mapper

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/tradesync/internal/model"
)

func journalSchema() model.SchemaDescriptor {
	return model.SchemaDescriptor{
		DatabaseID: "db1",
		Properties: map[string]model.PropertyKind{
			"Name":         model.KindTitle,
			"Overall":      model.KindSelect,
			"Pair":         model.KindSelect,
			"Type":         model.KindSelect,
			"Open":         model.KindDate,
			"Close":        model.KindDate,
			"Volume":       model.KindNumber,
			"Open Price":   model.KindNumber,
			"Close Price":  model.KindNumber,
			"Profit":       model.KindNumber,
			"Commission":   model.KindNumber,
			"SWAP":         model.KindNumber,
			"Net Profit":   model.KindFormula,
			"SL":           model.KindNumber,
			"TP":           model.KindNumber,
			"Ticket ID":    model.KindNumber,
			"Position ID":  model.KindNumber,
			"Magic Number": model.KindRichText,
			"Comment":      model.KindRichText,
			"Close Reason": model.KindSelect,
			"Created":      model.KindCreatedTime,
		},
	}
}

func sampleTrade() model.Trade {
	sl := decimal.RequireFromString("1.0950")
	return model.Trade{
		TicketID:    101,
		PositionID:  model.Ptr(int64(55)),
		MagicNumber: model.Ptr(int64(777)),
		AccountName: "Main",
		Symbol:      "EURUSD",
		Side:        model.SideBuy,
		OpenTime:    time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		CloseTime:   time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC),
		Volume:      decimal.RequireFromString("0.10"),
		OpenPrice:   decimal.RequireFromString("1.1000"),
		ClosePrice:  decimal.RequireFromString("1.1050"),
		Profit:      decimal.NewFromInt(50),
		Commission:  decimal.NewFromInt(-7),
		Swap:        decimal.NewFromInt(-4),
		NetProfit:   decimal.NewFromInt(39),
		StopLoss:    &sl,
		Comment:     "breakout",
		CloseReason: "Take Profit",
	}
}

func TestMapper_Map(t *testing.T) {
	m := New(DefaultNames())

	set, err := m.Map(sampleTrade(), journalSchema())
	require.NoError(t, err)

	assert.Equal(t, int64(101), set.TicketID)
	assert.Equal(t, "Main", set.Account)
	assert.Equal(t, "EURUSD Buy #101", set.Title)

	title, ok := set.Get("Name")
	require.True(t, ok)
	assert.Equal(t, model.KindTitle, title.Kind)
	assert.Equal(t, "EURUSD Buy #101", title.Text)

	ticket, ok := set.Get("Ticket ID")
	require.True(t, ok)
	require.NotNil(t, ticket.Number)
	assert.Equal(t, 101.0, *ticket.Number)

	side, _ := set.Get("Type")
	assert.Equal(t, "Buy", side.Text)

	open, _ := set.Get("Open")
	require.NotNil(t, open.Date)
	assert.True(t, open.Date.Equal(sampleTrade().OpenTime))

	sl, _ := set.Get("SL")
	require.NotNil(t, sl.Number)
	assert.InDelta(t, 1.095, *sl.Number, 1e-9)

	tp, ok := set.Get("TP")
	require.True(t, ok, "unset take profit is written as an empty number")
	assert.Nil(t, tp.Number)

	magic, _ := set.Get("Magic Number")
	assert.Equal(t, model.KindRichText, magic.Kind)
	assert.Equal(t, "777", magic.Text, "numbers coerce to text properties")

	reason, _ := set.Get("Close Reason")
	assert.Equal(t, "Take Profit", reason.Text)

	_, ok = set.Get("Net Profit")
	assert.False(t, ok, "formula properties are never written")
	_, ok = set.Get("Created")
	assert.False(t, ok)
	_, ok = set.Get("Order ID")
	assert.False(t, ok, "properties missing from the schema are skipped")

	for i := 1; i < len(set.Writes); i++ {
		assert.Less(t, set.Writes[i-1].Name, set.Writes[i].Name, "writes sorted by name")
	}
}

func TestMapper_IncompatibleKindsSkipped(t *testing.T) {
	schema := model.SchemaDescriptor{Properties: map[string]model.PropertyKind{
		"Name":      model.KindTitle,
		"Ticket ID": model.KindNumber,
		"Comment":   model.KindNumber,
		"Open":      model.KindRichText,
		"Profit":    model.KindCheckbox,
	}}

	set, err := New(DefaultNames()).Map(sampleTrade(), schema)
	require.NoError(t, err)

	_, ok := set.Get("Comment")
	assert.False(t, ok, "text into number is skipped")
	_, ok = set.Get("Profit")
	assert.False(t, ok, "number into checkbox is skipped")

	open, ok := set.Get("Open")
	require.True(t, ok)
	assert.Equal(t, "2024-01-15 12:00:00", open.Text)
}

func TestMapper_Validate(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]model.PropertyKind
		ok    bool
	}{
		{"valid", map[string]model.PropertyKind{"Name": model.KindTitle, "Ticket ID": model.KindNumber}, true},
		{"no title", map[string]model.PropertyKind{"Ticket ID": model.KindNumber}, false},
		{"two titles", map[string]model.PropertyKind{"Name": model.KindTitle, "Trade": model.KindTitle, "Ticket ID": model.KindNumber}, false},
		{"missing ticket", map[string]model.PropertyKind{"Name": model.KindTitle}, false},
		{"ticket is title", map[string]model.PropertyKind{"Ticket ID": model.KindTitle}, false},
		{"ticket is text", map[string]model.PropertyKind{"Name": model.KindTitle, "Ticket ID": model.KindRichText}, false},
	}

	m := New(DefaultNames())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Validate(model.SchemaDescriptor{Properties: tt.props})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, model.ErrSchema), "err = %v, want SchemaError", err)
		})
	}
}

func TestMapper_MapTwoTitlesFails(t *testing.T) {
	schema := journalSchema()
	schema.Properties["Trade"] = model.KindTitle

	_, err := New(DefaultNames()).Map(sampleTrade(), schema)
	require.ErrorIs(t, err, model.ErrSchema)

	var e *model.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, int64(101), e.TicketID)
}

func TestNames_WithOverrides(t *testing.T) {
	names, err := DefaultNames().WithOverrides(map[string]string{
		"ticket_id": "Deal #",
		"Account":   "Account",
		"comment":   "",
	})
	require.NoError(t, err)
	assert.Equal(t, "Deal #", names.TicketID)
	assert.Equal(t, "Account", names.Account)
	assert.Equal(t, "", names.Comment)
	assert.Equal(t, "Pair", names.Symbol)

	_, err = DefaultNames().WithOverrides(map[string]string{"risk": "Risk"})
	assert.Error(t, err)

	_, err = DefaultNames().WithOverrides(map[string]string{"ticket_id": " "})
	assert.Error(t, err)

	assert.Len(t, FieldKeys(), 22)
}

func TestNames_Lookup(t *testing.T) {
	names, err := DefaultNames().WithOverrides(map[string]string{"comment": ""})
	require.NoError(t, err)

	got, ok := names.Lookup("ticket_id")
	assert.True(t, ok)
	assert.Equal(t, "Ticket ID", got)

	got, ok = names.Lookup("comment")
	assert.True(t, ok)
	assert.Empty(t, got)

	_, ok = names.Lookup("risk")
	assert.False(t, ok)

	for _, key := range FieldKeys() {
		_, ok := names.Lookup(key)
		assert.True(t, ok, key)
	}
}
