package metrics

import (
	"testing"

	"optionforge/internal/domain"
)

func makeTrade(id string, exit domain.Date, pnl float64, hold int) domain.TradeRecord {
	return domain.TradeRecord{TradeID: id, ExitDate: exit, RealizedPnL: pnl, HoldDays: hold}
}

func TestSummarizeTrades_Empty(t *testing.T) {
	if got := SummarizeTrades(nil); got != (domain.TradeStats{}) {
		t.Errorf("expected zero stats, got %+v", got)
	}
}

func TestSummarizeTrades_Counts(t *testing.T) {
	d := domain.NewDate(2024, 1, 2)
	trades := []domain.TradeRecord{
		makeTrade("t1", d, 100, 10),
		makeTrade("t2", d.AddDays(10), -50, 5),
		makeTrade("t3", d.AddDays(20), 150, 15),
		makeTrade("t4", d.AddDays(30), 0, 2),
	}

	s := SummarizeTrades(trades)

	if s.TotalTrades != 4 || s.Wins != 2 || s.Losses != 2 {
		t.Errorf("expected 4/2/2, got %d/%d/%d", s.TotalTrades, s.Wins, s.Losses)
	}
	if s.WinRatePct != 50 {
		t.Errorf("expected win rate 50, got %v", s.WinRatePct)
	}
	if s.MeanPnL != 50 {
		t.Errorf("expected mean 50, got %v", s.MeanPnL)
	}
	if s.MedianPnL != 50 {
		t.Errorf("expected median 50, got %v", s.MedianPnL)
	}
	if s.BestPnL != 150 || s.WorstPnL != -50 {
		t.Errorf("expected best 150 worst -50, got %v %v", s.BestPnL, s.WorstPnL)
	}
	if s.AvgHoldDays != 8 {
		t.Errorf("expected avg hold 8, got %v", s.AvgHoldDays)
	}
}

func TestSummarizeTrades_ConsecutiveLossesUseExitOrder(t *testing.T) {
	d := domain.NewDate(2024, 1, 2)
	// given out of order; chronological order is win, loss, loss, loss, win
	trades := []domain.TradeRecord{
		makeTrade("e", d.AddDays(4), 10, 1),
		makeTrade("b", d.AddDays(1), -1, 1),
		makeTrade("a", d, 10, 1),
		makeTrade("d", d.AddDays(3), -1, 1),
		makeTrade("c", d.AddDays(2), -1, 1),
	}
	if got := SummarizeTrades(trades).MaxConsecutiveLosses; got != 3 {
		t.Errorf("expected 3 consecutive losses, got %d", got)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct{ p, want float64 }{
		{0, 1}, {0.5, 3}, {0.1, 1.4}, {0.9, 4.6}, {1, 5},
	}
	for _, tt := range tests {
		if got := computePercentile(sorted, tt.p); got < tt.want-1e-9 || got > tt.want+1e-9 {
			t.Errorf("p%.0f: expected %v, got %v", tt.p*100, tt.want, got)
		}
	}
}
