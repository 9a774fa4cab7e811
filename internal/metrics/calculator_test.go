package metrics

import (
	"math"
	"reflect"
	"testing"

	"optionforge/internal/domain"
)

func TestCompute_Scenario(t *testing.T) {
	m := Compute([]float64{100, 110, 105, 115}, 0.02)

	if m.TotalReturnPct != 15.0 {
		t.Errorf("expected total return 15.00, got %v", m.TotalReturnPct)
	}
	if m.MaxDrawdownPct != -4.55 {
		t.Errorf("expected max drawdown -4.55, got %v", m.MaxDrawdownPct)
	}
	if m.WinRatePct != 66.67 {
		t.Errorf("expected win rate 66.67, got %v", m.WinRatePct)
	}
	// gains 0.1 + 0.0952381 over loss 0.0454545
	if m.ProfitFactor.Unbounded || m.ProfitFactor.Value != 4.3 {
		t.Errorf("expected profit factor 4.30, got %s", m.ProfitFactor)
	}
	// four points annualize as four trading days
	wantAnnual := math.Pow(1.15, 252.0/4) - 1
	if math.Abs(m.AnnualizedReturnPct-wantAnnual*100) > 0.01 {
		t.Errorf("expected annualized return %.2f, got %v", wantAnnual*100, m.AnnualizedReturnPct)
	}
	if want := wantAnnual / (5.0 / 110); math.Abs(m.CalmarRatio-want) > 0.01 {
		t.Errorf("expected calmar %.2f, got %v", want, m.CalmarRatio)
	}
}

func TestCompute_StrictlyIncreasing(t *testing.T) {
	m := Compute([]float64{100, 101, 103, 104.5, 110}, 0.02)

	if m.MaxDrawdownPct != 0 {
		t.Errorf("expected max drawdown 0, got %v", m.MaxDrawdownPct)
	}
	if m.WinRatePct != 100 {
		t.Errorf("expected win rate 100, got %v", m.WinRatePct)
	}
	if !m.ProfitFactor.Unbounded {
		t.Errorf("expected unbounded profit factor, got %s", m.ProfitFactor)
	}
	if m.CalmarRatio != 0 {
		t.Errorf("expected calmar 0 without drawdown, got %v", m.CalmarRatio)
	}
	// no negative excess returns, so no downside deviation
	if m.SortinoRatio != 0 {
		t.Errorf("expected sortino 0, got %v", m.SortinoRatio)
	}
}

func TestCompute_Flat(t *testing.T) {
	m := Compute([]float64{100, 100, 100, 100}, 0.02)

	if m.TotalReturnPct != 0 {
		t.Errorf("expected total return 0, got %v", m.TotalReturnPct)
	}
	if m.SharpeRatio != 0 {
		t.Errorf("expected sharpe 0, got %v", m.SharpeRatio)
	}
	if !m.ProfitFactor.Unbounded {
		t.Errorf("expected unbounded profit factor marker, got %s", m.ProfitFactor)
	}
	if m.WinRatePct != 0 {
		t.Errorf("expected win rate 0, got %v", m.WinRatePct)
	}
}

func TestCompute_Degenerate(t *testing.T) {
	for _, equity := range [][]float64{nil, {}, {100}} {
		m := Compute(equity, 0.02)
		if !reflect.DeepEqual(m, domain.MetricsResult{}) {
			t.Errorf("expected all-zero result for %v, got %+v", equity, m)
		}
	}
}

func TestCompute_ZeroInitialEquity(t *testing.T) {
	m := Compute([]float64{0, 10, 20}, 0)
	if m.TotalReturnPct != 0 {
		t.Errorf("expected total return 0 when initial equity is 0, got %v", m.TotalReturnPct)
	}
}

func TestCompute_TotalLoss(t *testing.T) {
	m := Compute([]float64{100, 50, -10}, 0)
	if m.AnnualizedReturnPct != -100 {
		t.Errorf("expected annualized -100 when equity is wiped out, got %v", m.AnnualizedReturnPct)
	}
	if m.MaxDrawdownPct != -110 {
		t.Errorf("expected max drawdown -110, got %v", m.MaxDrawdownPct)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	equity := []float64{100, 98, 103, 101, 107, 99, 112}
	first := Compute(equity, 0.03)
	for i := 0; i < 5; i++ {
		if got := Compute(equity, 0.03); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
	if equity[0] != 100 || equity[6] != 112 {
		t.Errorf("input mutated: %v", equity)
	}
}

func TestCompute_AlwaysFinite(t *testing.T) {
	curves := [][]float64{
		{1, 1000, 1e6},
		{100, 0, 100},
		{100, 200, 50, 400, 25},
	}
	for _, equity := range curves {
		m := Compute(equity, 0.05)
		v := reflect.ValueOf(m)
		for i := 0; i < v.NumField(); i++ {
			f, ok := v.Field(i).Interface().(float64)
			if !ok {
				continue
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				t.Errorf("%v: field %s is not finite", equity, v.Type().Field(i).Name)
			}
		}
	}
}

func TestCompute_SharpeSortino(t *testing.T) {
	equity := []float64{100, 102, 101, 104, 103, 106, 104, 108}
	returns := computeReturns(equity)
	dailyRF := math.Pow(1.02, 1.0/252) - 1

	excess := make([]float64, len(returns))
	var downside []float64
	for i, r := range returns {
		excess[i] = r - dailyRF
		if excess[i] < 0 {
			downside = append(downside, excess[i])
		}
	}
	mean := computeMean(excess)
	wantSharpe := round2(mean / computeStddev(excess, mean) * math.Sqrt(252))
	wantSortino := round2(mean * 252 / (computeStddev(downside, computeMean(downside)) * math.Sqrt(252)))

	m := Compute(equity, 0.02)
	if m.SharpeRatio != wantSharpe {
		t.Errorf("expected sharpe %v, got %v", wantSharpe, m.SharpeRatio)
	}
	if m.SortinoRatio != wantSortino {
		t.Errorf("expected sortino %v, got %v", wantSortino, m.SortinoRatio)
	}
}

func TestComputeFromPnL(t *testing.T) {
	got := ComputeFromPnL([]float64{10, -5, 10}, 100, 0.02)
	want := Compute([]float64{100, 110, 105, 115}, 0.02)

	// three P&L days annualize over three days; the capital point is not a day
	wantAnnual := math.Pow(1.15, 252.0/3) - 1
	if math.Abs(got.AnnualizedReturnPct-wantAnnual*100) > 0.01 {
		t.Errorf("expected annualized return %.2f, got %v", wantAnnual*100, got.AnnualizedReturnPct)
	}
	if got.AnnualizedReturnPct <= want.AnnualizedReturnPct {
		t.Errorf("expected fewer days to annualize higher: %v vs %v",
			got.AnnualizedReturnPct, want.AnnualizedReturnPct)
	}

	got.AnnualizedReturnPct, want.AnnualizedReturnPct = 0, 0
	got.CalmarRatio, want.CalmarRatio = 0, 0
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestEquityCurve(t *testing.T) {
	got := EquityCurve([]float64{1, 2, -3}, 10)
	want := []float64{10, 11, 13, 10}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRound2_HalfAwayFromZero(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{1.005, 1.01},
		{-1.005, -1.01},
		{2.344, 2.34},
		{66.666666, 66.67},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
