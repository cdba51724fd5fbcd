package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/tradesync/internal/model"
)

func fullDeal(ticket int64) model.RawDeal {
	return model.RawDeal{
		Ticket:     model.Ptr(ticket),
		PositionID: model.Ptr(int64(5001)),
		OrderID:    model.Ptr(int64(7001)),
		Magic:      model.Ptr(int64(42)),
		Symbol:     "EURUSD",
		Type:       model.Ptr(model.DealTypeBuy),
		Reason:     model.Ptr(ReasonTP),
		OpenTime:   model.Ptr(int64(1705320000)),
		CloseTime:  model.Ptr(int64(1705323600)),
		Volume:     model.Ptr(0.1),
		OpenPrice:  model.Ptr(1.0950),
		ClosePrice: model.Ptr(1.0990),
		Profit:     model.Ptr(40.0),
		Commission: model.Ptr(-0.7),
		Swap:       model.Ptr(-0.3),
		StopLoss:   model.Ptr(1.0900),
		TakeProfit: model.Ptr(1.0990),
		Comment:    "breakout",
	}
}

func TestNormalize_FullRecord(t *testing.T) {
	tr, err := Normalize(fullDeal(101), "Main")
	require.NoError(t, err)

	assert.Equal(t, int64(101), tr.TicketID)
	assert.Equal(t, "Main", tr.AccountName)
	assert.Equal(t, model.SideBuy, tr.Side)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), tr.OpenTime)
	assert.Equal(t, time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC), tr.CloseTime)
	assert.Equal(t, "Take Profit", tr.CloseReason)
	assert.True(t, tr.NetProfit.Equal(decimal.RequireFromString("39")), "net = %s", tr.NetProfit)
	require.NotNil(t, tr.PositionID)
	assert.Equal(t, int64(5001), *tr.PositionID)
	require.NotNil(t, tr.StopLoss)
	assert.True(t, tr.StopLoss.Equal(decimal.RequireFromString("1.09")))
}

func TestNormalize_IgnoresUpstreamNetProfit(t *testing.T) {
	raw := fullDeal(101)
	raw.NetProfit = model.Ptr(9999.0)

	tr, err := Normalize(raw, "Main")
	require.NoError(t, err)

	assert.True(t, tr.NetProfit.Equal(tr.Profit.Add(tr.Commission).Add(tr.Swap)))
	assert.False(t, tr.NetProfit.Equal(decimal.NewFromInt(9999)))
}

func TestNormalize_NetProfitInvariant(t *testing.T) {
	cases := []struct{ profit, commission, swap *float64 }{
		{nil, nil, nil},
		{model.Ptr(-12.5), nil, model.Ptr(0.25)},
		{model.Ptr(0.1), model.Ptr(0.2), model.Ptr(0.3)},
		{model.Ptr(1e6), model.Ptr(-3.5), model.Ptr(-1e-5)},
	}

	for _, c := range cases {
		raw := model.RawDeal{Ticket: model.Ptr(int64(1)), Profit: c.profit, Commission: c.commission, Swap: c.swap}
		tr, err := Normalize(raw, "A")
		require.NoError(t, err)
		assert.True(t, tr.NetProfit.Equal(tr.Profit.Add(tr.Commission).Add(tr.Swap)))
	}
}

func TestNormalize_MissingOptionalFields(t *testing.T) {
	raw := model.RawDeal{
		Ticket:    model.Ptr(int64(55)),
		CloseTime: model.Ptr(int64(1705323600)),
		Type:      model.Ptr(int64(6)),
	}

	tr, err := Normalize(raw, "A")
	require.NoError(t, err)

	assert.Equal(t, model.SideUnknown, tr.Side)
	assert.True(t, tr.Volume.IsZero())
	assert.True(t, tr.NetProfit.IsZero())
	assert.Nil(t, tr.PositionID)
	assert.Nil(t, tr.MagicNumber)
	assert.Nil(t, tr.StopLoss)
	assert.Nil(t, tr.TakeProfit)
	assert.Equal(t, tr.CloseTime, tr.OpenTime, "missing open time falls back to close time")
	assert.Equal(t, "Manual Close", tr.CloseReason)
}

func TestNormalize_OpenAfterCloseIsClamped(t *testing.T) {
	raw := model.RawDeal{
		Ticket:    model.Ptr(int64(3)),
		OpenTime:  model.Ptr(int64(2000)),
		CloseTime: model.Ptr(int64(1000)),
	}

	tr, err := Normalize(raw, "A")
	require.NoError(t, err)
	assert.False(t, tr.CloseTime.Before(tr.OpenTime))
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  model.RawDeal
	}{
		{"absent ticket", model.RawDeal{Symbol: "EURUSD"}},
		{"zero ticket", model.RawDeal{Ticket: model.Ptr(int64(0))}},
		{"negative ticket", model.RawDeal{Ticket: model.Ptr(int64(-4))}},
		{"negative volume", model.RawDeal{Ticket: model.Ptr(int64(4)), Volume: model.Ptr(-1.0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, "A")
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrMalformedRecord)
		})
	}
}

func TestCloseReason(t *testing.T) {
	assert.Equal(t, "Stop Loss", CloseReason(ReasonSL))
	assert.Equal(t, "Take Profit", CloseReason(ReasonTP))
	assert.Equal(t, "Stop Out", CloseReason(ReasonStopOut))
	assert.Equal(t, "Expert", CloseReason(ReasonExpert))
	assert.Equal(t, "Manual Close", CloseReason(ReasonWeb))
}

func TestNormalizeBatch(t *testing.T) {
	late := fullDeal(103)
	late.CloseTime = model.Ptr(int64(1705400000))
	early := fullDeal(102)
	early.CloseTime = model.Ptr(int64(1705323000))

	raws := []model.RawDeal{
		late,
		fullDeal(101),
		{Ticket: model.Ptr(int64(0))}, // dropped
		early,
		fullDeal(101), // repeated
	}

	b := NormalizeBatch(raws, "Main")

	require.Len(t, b.Trades, 3)
	assert.Equal(t, []int64{102, 101, 103}, tickets(b.Trades))
	require.Len(t, b.Failures, 1)
	assert.Equal(t, model.KindMalformedRecord, b.Failures[0].Kind)
	assert.Equal(t, 1, b.Duplicates)
}

func tickets(trades []model.Trade) []int64 {
	out := make([]int64, len(trades))
	for i, t := range trades {
		out[i] = t.TicketID
	}
	return out
}
