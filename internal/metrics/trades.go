package metrics

import (
	"sort"

	"optionforge/internal/domain"
)

// SummarizeTrades calculates trade-level statistics from closed trades.
// Trades are sorted by ExitDate ASC, TradeID ASC before computing
// order-dependent statistics (MaxConsecutiveLosses).
func SummarizeTrades(trades []domain.TradeRecord) domain.TradeStats {
	n := len(trades)
	if n == 0 {
		return domain.TradeStats{}
	}

	sorted := make([]domain.TradeRecord, n)
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].ExitDate.Compare(sorted[j].ExitDate); c != 0 {
			return c < 0
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	wins := 0
	holdDays := 0
	outcomes := make([]float64, n)
	for i, t := range sorted {
		outcomes[i] = t.RealizedPnL
		if t.RealizedPnL > 0 {
			wins++
		}
		holdDays += t.HoldDays
	}

	sortedOutcomes := make([]float64, n)
	copy(sortedOutcomes, outcomes)
	sort.Float64s(sortedOutcomes)

	mean := computeMean(outcomes)

	return domain.TradeStats{
		TotalTrades:          n,
		Wins:                 wins,
		Losses:               n - wins,
		WinRatePct:           pct(float64(wins) / float64(n)),
		MeanPnL:              round2(mean),
		MedianPnL:            round2(computePercentile(sortedOutcomes, 0.50)),
		P10PnL:               round2(computePercentile(sortedOutcomes, 0.10)),
		P90PnL:               round2(computePercentile(sortedOutcomes, 0.90)),
		BestPnL:              round2(sortedOutcomes[n-1]),
		WorstPnL:             round2(sortedOutcomes[0]),
		StddevPnL:            round2(computeStddev(outcomes, mean)),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(outcomes),
		AvgHoldDays:          round2(float64(holdDays) / float64(n)),
	}
}

// computeMaxConsecutiveLosses finds longest streak of outcome <= 0.
// Outcomes must be in chronological order.
func computeMaxConsecutiveLosses(outcomes []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, o := range outcomes {
		if o <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
