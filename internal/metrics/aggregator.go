package metrics

import (
	"context"
	"errors"
	"sort"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// ErrNoRuns is returned when a strategy has no backtest runs to aggregate.
var ErrNoRuns = errors.New("no backtest runs available for aggregation")

// Aggregator summarizes the backtest runs of a strategy.
type Aggregator struct {
	runStore storage.BacktestRunStore
}

// NewAggregator creates a new run aggregator.
func NewAggregator(runStore storage.BacktestRunStore) *Aggregator {
	return &Aggregator{runStore: runStore}
}

// Summarize loads every run of strategyID and aggregates them.
// Returns ErrNoRuns if the strategy was never backtested.
func (a *Aggregator) Summarize(ctx context.Context, strategyID int64) (*domain.StrategySummary, error) {
	runs, err := a.runStore.ListByStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	summary := summarizeRuns(runs)
	summary.StrategyID = strategyID
	return summary, nil
}

// summarizeRuns aggregates runs. Return statistics cover COMPLETED runs with a result.
func summarizeRuns(runs []*domain.BacktestRun) *domain.StrategySummary {
	s := &domain.StrategySummary{TotalRuns: len(runs)}

	var returns, sharpes []float64
	for _, run := range runs {
		switch run.Status {
		case domain.RunStatusFailed:
			s.FailedRuns++
			if s.FailuresByKind == nil {
				s.FailuresByKind = make(map[string]int)
			}
			kind := run.ErrorKind
			if kind == "" {
				kind = "unknown"
			}
			s.FailuresByKind[kind]++
		case domain.RunStatusCompleted:
			s.CompletedRuns++
			if run.CompletedAt != nil && (s.LastCompletedAt == nil || run.CompletedAt.After(*s.LastCompletedAt)) {
				at := *run.CompletedAt
				s.LastCompletedAt = &at
			}
			if run.Result == nil {
				continue
			}
			returns = append(returns, run.Result.SummaryMetrics.TotalReturnPct)
			sharpes = append(sharpes, run.Result.SummaryMetrics.SharpeRatio)
			s.TotalTrades += len(run.Result.Trades)
		default:
			s.ActiveRuns++
		}
	}

	if len(returns) == 0 {
		return s
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	s.MeanReturnPct = round2(computeMean(returns))
	s.MedianReturnPct = round2(computePercentile(sorted, 0.5))
	s.WorstReturnPct = sorted[0]
	s.BestReturnPct = sorted[len(sorted)-1]
	s.MeanSharpe = round2(computeMean(sharpes))
	return s
}
