package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"optionforge/internal/domain"
	"optionforge/internal/storage/memory"
)

// Helper to create a finished run with a specific outcome.
func makeRun(id string, status domain.RunStatus, totalReturn, sharpe float64, trades int, created time.Time) *domain.BacktestRun {
	strategyID := int64(1)
	run := &domain.BacktestRun{
		RunID:      id,
		StrategyID: &strategyID,
		StartDate:  domain.NewDate(2024, 1, 1),
		EndDate:    domain.NewDate(2024, 6, 30),
		Status:     status,
		CreatedAt:  created,
	}
	if status == domain.RunStatusCompleted {
		done := created.Add(time.Minute)
		run.CompletedAt = &done
		run.Result = &domain.BacktestResult{
			SummaryMetrics: domain.MetricsResult{TotalReturnPct: totalReturn, SharpeRatio: sharpe},
			Trades:         make([]domain.TradeRecord, trades),
		}
	}
	return run
}

func TestSummarize_MixedRuns(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBacktestRunStore()
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	runs := []*domain.BacktestRun{
		makeRun("r1", domain.RunStatusCompleted, 10, 1.0, 4, base),
		makeRun("r2", domain.RunStatusCompleted, -5, -0.5, 2, base.Add(time.Hour)),
		makeRun("r3", domain.RunStatusCompleted, 3, 0.8, 1, base.Add(2*time.Hour)),
		makeRun("r4", domain.RunStatusFailed, 0, 0, 0, base.Add(3*time.Hour)),
		makeRun("r5", domain.RunStatusFailed, 0, 0, 0, base.Add(4*time.Hour)),
		makeRun("r6", domain.RunStatusPending, 0, 0, 0, base.Add(5*time.Hour)),
	}
	runs[3].ErrorKind = "DataNotFoundError"
	runs[4].ErrorKind = "DataNotFoundError"

	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	agg := NewAggregator(store)
	s, err := agg.Summarize(ctx, 1)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if s.TotalRuns != 6 || s.CompletedRuns != 3 || s.FailedRuns != 2 || s.ActiveRuns != 1 {
		t.Errorf("Unexpected counts: %+v", s)
	}
	if s.FailuresByKind["DataNotFoundError"] != 2 {
		t.Errorf("Expected 2 DataNotFoundError failures, got %v", s.FailuresByKind)
	}
	if s.MeanReturnPct != 2.67 {
		t.Errorf("Expected mean return 2.67, got %v", s.MeanReturnPct)
	}
	if s.MedianReturnPct != 3 {
		t.Errorf("Expected median return 3, got %v", s.MedianReturnPct)
	}
	if s.BestReturnPct != 10 || s.WorstReturnPct != -5 {
		t.Errorf("Expected best 10 and worst -5, got %v and %v", s.BestReturnPct, s.WorstReturnPct)
	}
	if s.MeanSharpe != 0.43 {
		t.Errorf("Expected mean Sharpe 0.43, got %v", s.MeanSharpe)
	}
	if s.TotalTrades != 7 {
		t.Errorf("Expected 7 trades, got %d", s.TotalTrades)
	}
	if s.LastCompletedAt == nil || !s.LastCompletedAt.Equal(base.Add(2*time.Hour+time.Minute)) {
		t.Errorf("Unexpected last completion: %v", s.LastCompletedAt)
	}
}

func TestSummarize_NoRuns(t *testing.T) {
	agg := NewAggregator(memory.NewBacktestRunStore())
	if _, err := agg.Summarize(context.Background(), 42); !errors.Is(err, ErrNoRuns) {
		t.Errorf("Expected ErrNoRuns, got %v", err)
	}
}

func TestSummarize_OnlyFailures(t *testing.T) {
	s := summarizeRuns([]*domain.BacktestRun{
		{RunID: "a", Status: domain.RunStatusFailed},
	})
	if s.FailuresByKind["unknown"] != 1 {
		t.Errorf("Expected unknown failure kind, got %v", s.FailuresByKind)
	}
	if s.MeanReturnPct != 0 || s.LastCompletedAt != nil {
		t.Errorf("Expected empty return stats, got %+v", s)
	}
}
