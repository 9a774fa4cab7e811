package backtest

import (
	"math"
	"testing"

	"optionforge/internal/domain"
)

func TestIVRank(t *testing.T) {
	tests := []struct {
		name     string
		ivs      []float64
		lookback int
		want     float64
		ok       bool
	}{
		{"middle of range", []float64{0.10, 0.20, 0.15}, 252, 50, true},
		{"at high", []float64{0.10, 0.20, 0.30}, 252, 100, true},
		{"at low", []float64{0.30, 0.20, 0.10}, 252, 0, true},
		{"lookback trims history", []float64{0.50, 0.20, 0.10, 0.15}, 3, 50, true},
		{"single observation", []float64{0.2}, 252, 0, false},
		{"flat range", []float64{0.2, 0.2, 0.2}, 252, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ivRank(tt.ivs, tt.lookback)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected rank %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if got, ok := sma(values, 2); !ok || got != 4.5 {
		t.Errorf("Expected 4.5, got %v (ok=%v)", got, ok)
	}
	if _, ok := sma(values, 6); ok {
		t.Error("Expected undefined SMA for short history")
	}
	if _, ok := sma(values, 0); ok {
		t.Error("Expected undefined SMA for zero window")
	}
}

func TestExitReason(t *testing.T) {
	rules := domain.ExitRules{
		ProfitTargetPct: domain.Float(50),
		StopLossPct:     domain.Float(100),
		DTEToExit:       domain.Int(21),
		MaxHoldDays:     domain.Int(30),
	}

	tests := []struct {
		name   string
		pnlPct float64
		hasPct bool
		minDTE int
		held   int
		want   string
	}{
		{"nothing fires", 10, true, 30, 5, ""},
		{"profit target", 50, true, 30, 5, domain.ExitReasonProfitTarget},
		{"profit target wins over dte", 60, true, 10, 5, domain.ExitReasonProfitTarget},
		{"stop loss", -100, true, 30, 5, domain.ExitReasonStopLoss},
		{"dte", 0, true, 21, 5, domain.ExitReasonDTE},
		{"max hold", 0, true, 30, 30, domain.ExitReasonMaxHold},
		{"no basis skips pct rules", 500, false, 30, 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitReason(rules, tt.pnlPct, tt.hasPct, tt.minDTE, tt.held); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	if got := exitReason(domain.ExitRules{}, -1000, true, 0, 1000); got != "" {
		t.Errorf("Expected no exit without rules, got %q", got)
	}
}

func TestEntryGate_DaysOfWeek(t *testing.T) {
	gate := newEntryGate(domain.EntryRules{DaysOfWeek: []int{1, 5}}, 0.02)
	day := &chainDay{date: mon}
	gate.observe(day, 0, false)

	if !gate.allows(mon) {
		t.Error("Expected Monday to pass")
	}
	if gate.allows(tue) {
		t.Error("Expected Tuesday to fail")
	}
	if !gate.allows(domain.NewDate(2024, 1, 5)) {
		t.Error("Expected Friday to pass")
	}
}

func TestEntryGate_MovingAverageCross(t *testing.T) {
	gate := newEntryGate(domain.EntryRules{MovingAverageCross: &domain.MovingAverageCross{Short: 2, Long: 3}}, 0.02)

	date := mon
	for _, spot := range []float64{100, 99} {
		gate.observe(&chainDay{date: date}, spot, true)
		date = date.AddDays(1)
	}
	if gate.allows(date) {
		t.Error("Expected gate closed before the long window fills")
	}

	gate.observe(&chainDay{date: date}, 104, true)
	// short (99+104)/2 = 101.5 > long (100+99+104)/3 = 101
	if !gate.allows(date) {
		t.Error("Expected gate open when short SMA is above long SMA")
	}

	gate.observe(&chainDay{date: date.AddDays(1)}, 90, true)
	if gate.allows(date.AddDays(1)) {
		t.Error("Expected gate closed after a drop")
	}
}

func TestEntryGate_IVRankNeedsHistory(t *testing.T) {
	gate := newEntryGate(domain.EntryRules{IVRankMin: domain.Float(0)}, 0)
	exp := domain.NewDate(2024, 1, 31)

	c := call(mon, exp, 100, 2.0, 2.2)
	c.ImpliedVolatility = 0.2
	gate.observe(buildCalendar([]*domain.OptionQuote{c}, "SPY", mon, mon)[0], 100, true)
	if gate.allows(mon) {
		t.Error("Expected IV rank undefined on the first observation")
	}

	c2 := call(tue, exp, 100, 2.5, 2.7)
	c2.ImpliedVolatility = 0.25
	gate.observe(buildCalendar([]*domain.OptionQuote{c2}, "SPY", tue, tue)[0], 100, true)
	if !gate.allows(tue) {
		t.Error("Expected IV rank 100 to pass a zero minimum")
	}

	// a day without spot has no IV observation
	gate.observe(&chainDay{date: wed}, 0, false)
	if gate.allows(wed) {
		t.Error("Expected gate closed without today's IV")
	}
}
