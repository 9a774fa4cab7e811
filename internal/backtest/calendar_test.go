package backtest

import (
	"errors"
	"math"
	"testing"

	"optionforge/internal/domain"
)

func TestBuildCalendar_GroupsAndOrders(t *testing.T) {
	exp := domain.NewDate(2024, 1, 31)
	other := put(mon, exp, 100, 1, 1.2, nil)
	other.UnderlyingTicker = "QQQ"

	quotes := []*domain.OptionQuote{
		put(wed, exp, 100, 1, 1.2, nil),
		call(mon, exp, 105, 1, 1.2),
		put(mon, exp, 95, 1, 1.2, nil),
		other,
		put(domain.NewDate(2024, 2, 1), exp, 100, 1, 1.2, nil), // after end
	}

	days := buildCalendar(quotes, "SPY", mon, wed)
	if len(days) != 2 {
		t.Fatalf("Expected 2 trading days, got %d", len(days))
	}
	if days[0].date != mon || days[1].date != wed {
		t.Errorf("Unexpected day order: %s, %s", days[0].date, days[1].date)
	}
	if len(days[0].quotes) != 2 || days[0].quotes[0].Strike != 95 {
		t.Errorf("Expected Monday chain ordered by strike, got %d quotes", len(days[0].quotes))
	}
}

func TestBuildCalendar_LaterDuplicateWins(t *testing.T) {
	exp := domain.NewDate(2024, 1, 31)
	first := put(mon, exp, 100, 1, 1.2, nil)
	second := put(mon, exp, 100, 2, 2.2, nil)

	days := buildCalendar([]*domain.OptionQuote{first, second}, "SPY", mon, mon)
	if len(days[0].quotes) != 1 {
		t.Fatalf("Expected 1 quote, got %d", len(days[0].quotes))
	}
	if days[0].byContract[second.Contract()].Bid != 2 || days[0].quotes[0].Bid != 2 {
		t.Error("Expected the later duplicate to replace the earlier one")
	}
}

func TestChainDay_Tradable(t *testing.T) {
	days := buildCalendar([]*domain.OptionQuote{
		put(wed, wed, 100, 1, 1.2, nil),
		put(wed, domain.NewDate(2024, 1, 10), 100, 1, 1.2, nil),
	}, "SPY", wed, wed)

	tradable := days[0].tradable()
	if len(tradable) != 1 || tradable[0].DTE() != 7 {
		t.Errorf("Expected only the 7 DTE contract, got %d", len(tradable))
	}
}

func TestChainDay_ImpliedSpot(t *testing.T) {
	near := domain.NewDate(2024, 1, 5)
	far := domain.NewDate(2024, 2, 16)
	days := buildCalendar([]*domain.OptionQuote{
		// nearest expiration: spots 102, 101, 103 from the three smallest |C-P|
		call(mon, near, 100, 4.9, 5.1), put(mon, near, 100, 2.9, 3.1, nil), // C-P = 2
		call(mon, near, 95, 6.9, 7.1), put(mon, near, 95, 0.9, 1.1, nil), // C-P = 6
		call(mon, near, 105, 0.9, 1.1), put(mon, near, 105, 2.9, 3.1, nil), // C-P = -2
		call(mon, near, 90, 13.9, 14.1), put(mon, near, 90, 0.4, 0.6, nil), // C-P = 13.5, ignored
		// farther expiration is not used
		call(mon, far, 100, 9.9, 10.1), put(mon, far, 100, 0.9, 1.1, nil),
	}, "SPY", mon, mon)

	spot, ok := days[0].impliedSpot(0)
	if !ok {
		t.Fatal("Expected implied spot")
	}
	if math.Abs(spot-102) > 1e-9 {
		t.Errorf("Expected median 102, got %v", spot)
	}
}

func TestChainDay_ImpliedSpotNeedsBothSides(t *testing.T) {
	days := buildCalendar([]*domain.OptionQuote{
		put(mon, domain.NewDate(2024, 1, 5), 100, 2.9, 3.1, nil),
		call(mon, domain.NewDate(2024, 1, 5), 105, 0.9, 1.1),
	}, "SPY", mon, mon)
	if _, ok := days[0].impliedSpot(0.02); ok {
		t.Error("Expected no implied spot without a call/put pair")
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{invalidf("bad"), KindInvalidStrategy},
		{&DataNotFoundError{Ticker: "SPY"}, KindDataNotFound},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
