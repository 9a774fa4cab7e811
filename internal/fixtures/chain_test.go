package fixtures

import (
	"reflect"
	"testing"
	"time"

	"optionforge/internal/domain"
)

func TestTradingDates_SkipsWeekends(t *testing.T) {
	p := DefaultChainParams("SPY", domain.NewDate(2024, 1, 5), 3) // Friday
	dates := TradingDates(p)

	want := []domain.Date{domain.NewDate(2024, 1, 5), domain.NewDate(2024, 1, 8), domain.NewDate(2024, 1, 9)}
	if !reflect.DeepEqual(dates, want) {
		t.Errorf("Expected %v, got %v", want, dates)
	}
}

func TestGenerateChain_Shape(t *testing.T) {
	p := DefaultChainParams("SPY", domain.NewDate(2024, 1, 2), 5)
	quotes := GenerateChain(p)
	if len(quotes) == 0 {
		t.Fatal("Expected quotes")
	}

	closes := Closes(p)
	if len(closes) != 5 {
		t.Errorf("Expected 5 closes, got %d", len(closes))
	}

	for _, q := range quotes {
		if err := q.Validate(); err != nil {
			t.Fatalf("invalid quote: %v", err)
		}
		if q.Expiration.Weekday() != time.Friday {
			t.Errorf("%s expires on %s", q.Contract(), q.Expiration.Weekday())
		}
		if dte := q.DTE(); dte < 0 || dte > p.MaxDTE {
			t.Errorf("%s has DTE %d", q.Contract(), dte)
		}
		if q.Bid > q.Ask {
			t.Errorf("%s has crossed market %v/%v", q.Contract(), q.Bid, q.Ask)
		}
		if _, ok := closes[q.Date]; !ok {
			t.Errorf("no close for quote date %s", q.Date)
		}
		if q.DTE() > 0 && q.Delta == nil {
			t.Errorf("%s is missing delta", q.Contract())
		}
		if q.Delta != nil {
			d := *q.Delta
			if q.Type == domain.OptionTypeCall && (d < 0 || d > 1) {
				t.Errorf("%s call delta %v out of range", q.Contract(), d)
			}
			if q.Type == domain.OptionTypePut && (d > 0 || d < -1) {
				t.Errorf("%s put delta %v out of range", q.Contract(), d)
			}
		}
	}
}

func TestGenerateChain_Deterministic(t *testing.T) {
	p := DefaultChainParams("QQQ", domain.NewDate(2024, 3, 4), 10)
	if !reflect.DeepEqual(GenerateChain(p), GenerateChain(p)) {
		t.Error("GenerateChain is not deterministic")
	}
}

func TestGenerateChain_Ordered(t *testing.T) {
	p := DefaultChainParams("SPY", domain.NewDate(2024, 1, 2), 3)
	quotes := GenerateChain(p)
	for i := 1; i < len(quotes); i++ {
		a, b := quotes[i-1], quotes[i]
		if b.Date.Before(a.Date) {
			t.Fatalf("quote %d out of date order", i)
		}
		if a.Date == b.Date && b.Expiration.Before(a.Expiration) {
			t.Fatalf("quote %d out of expiration order", i)
		}
	}
}
