package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSideFromDealType(t *testing.T) {
	tests := []struct {
		code int64
		want Side
		str  string
	}{
		{0, SideBuy, "Buy"},
		{1, SideSell, "Sell"},
		{2, SideUnknown, "Unknown"},
		{-1, SideUnknown, "Unknown"},
	}

	for _, tt := range tests {
		got := SideFromDealType(tt.code)
		if got != tt.want {
			t.Errorf("SideFromDealType(%d) = %v, want %v", tt.code, got, tt.want)
		}
		if got.String() != tt.str {
			t.Errorf("String() = %q, want %q", got.String(), tt.str)
		}
	}
}

func TestTrade_Label(t *testing.T) {
	tr := Trade{TicketID: 101, Symbol: "EURUSD", Side: SideSell}
	if got := tr.Label(); got != "EURUSD Sell #101" {
		t.Errorf("Label() = %q, want %q", got, "EURUSD Sell #101")
	}
}

func TestSchemaDescriptor(t *testing.T) {
	s := SchemaDescriptor{
		Properties: map[string]PropertyKind{
			"Name":       KindTitle,
			"Ticket ID":  KindNumber,
			"Net Profit": KindFormula,
		},
	}

	titles := s.TitleProperties()
	if len(titles) != 1 || titles[0] != "Name" {
		t.Errorf("TitleProperties() = %v, want [Name]", titles)
	}
	if k, ok := s.Kind("Net Profit"); !ok || !k.IsReadOnly() {
		t.Errorf("Net Profit kind = %q, ok=%v; want read-only", k, ok)
	}
	if _, ok := s.Kind("Missing"); ok {
		t.Error("expected Missing to be absent")
	}
}

func TestCycleResult_Totals(t *testing.T) {
	c := CycleResult{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Accounts: []AccountResult{
			{Account: "a", State: StateFailed, FailedAt: StateAuthenticating},
			{Account: "b", State: StateDone, Fetched: 3, Duplicate: 1, Created: 2},
			{Account: "c", State: StateDone, Fetched: 2, Created: 1, Failed: 1},
		},
	}

	got := c.Totals()
	want := Totals{Accounts: 3, FailedAccounts: 1, Fetched: 5, Duplicate: 1, Created: 3, Failed: 1}
	if got != want {
		t.Errorf("Totals() = %+v, want %+v", got, want)
	}

	if _, ok := c.Account("b"); !ok {
		t.Error("expected account b to be present")
	}
}
