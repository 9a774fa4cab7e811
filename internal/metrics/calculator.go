// Package metrics computes performance statistics for backtest equity curves and trades.
package metrics

import (
	"math"

	"optionforge/internal/domain"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// Compute calculates summary metrics for an equity curve.
// The input is used as-is; use ComputeFromPnL for daily P&L increments.
// Each point counts as one day when annualizing.
// Fewer than 2 points yields an all-zero result.
// riskFreeRate is an annual decimal rate.
func Compute(equity []float64, riskFreeRate float64) domain.MetricsResult {
	return compute(equity, len(equity), riskFreeRate)
}

// compute annualizes total return over numDays trading days.
func compute(equity []float64, numDays int, riskFreeRate float64) domain.MetricsResult {
	if len(equity) < 2 {
		return domain.MetricsResult{}
	}

	first, last := equity[0], equity[len(equity)-1]
	totalReturn := 0.0
	if first != 0 {
		totalReturn = last/first - 1
	}

	returns := computeReturns(equity)
	n := len(returns)

	annualized := -1.0
	if 1+totalReturn > 0 {
		annualized = math.Pow(1+totalReturn, float64(TradingDaysPerYear)/float64(numDays)) - 1
	}

	sqrtYear := math.Sqrt(TradingDaysPerYear)
	meanReturn := computeMean(returns)
	volatility := computeStddev(returns, meanReturn) * sqrtYear

	dailyRF := math.Pow(1+riskFreeRate, 1.0/TradingDaysPerYear) - 1
	excess := make([]float64, n)
	var downside []float64
	for i, r := range returns {
		excess[i] = r - dailyRF
		if excess[i] < 0 {
			downside = append(downside, excess[i])
		}
	}
	meanExcess := computeMean(excess)

	sharpe := 0.0
	if sd := computeStddev(excess, meanExcess); sd > 0 {
		sharpe = meanExcess / sd * sqrtYear
	}

	sortino := 0.0
	if dsd := computeStddev(downside, computeMean(downside)); dsd > 0 {
		sortino = meanExcess * TradingDaysPerYear / (dsd * sqrtYear)
	}

	maxDrawdown := computeMaxDrawdown(equity)
	calmar := 0.0
	if maxDrawdown != 0 {
		calmar = annualized / math.Abs(maxDrawdown)
	}

	wins := 0
	grossProfit, grossLoss := 0.0, 0.0
	for _, r := range returns {
		switch {
		case r > 0:
			wins++
			grossProfit += r
		case r < 0:
			grossLoss += -r
		}
	}
	winRate := 0.0
	if n > 0 {
		winRate = float64(wins) / float64(n)
	}
	profitFactor := domain.ProfitFactor{Unbounded: true}
	if grossLoss > 0 {
		profitFactor = domain.ProfitFactor{Value: round2(grossProfit / grossLoss)}
	}

	return domain.MetricsResult{
		TotalReturnPct:          pct(totalReturn),
		AnnualizedReturnPct:     pct(annualized),
		AnnualizedVolatilityPct: pct(volatility),
		SharpeRatio:             round2(sharpe),
		SortinoRatio:            round2(sortino),
		MaxDrawdownPct:          pct(maxDrawdown),
		WinRatePct:              pct(winRate),
		ProfitFactor:            profitFactor,
		CalmarRatio:             round2(calmar),
	}
}

// ComputeFromPnL builds the equity curve initialCapital + cumulative daily P&L
// and computes metrics on it. The starting capital is the first point, so
// one P&L value already yields one daily return. Annualization counts the
// P&L days, not the prepended capital point.
func ComputeFromPnL(dailyPnL []float64, initialCapital, riskFreeRate float64) domain.MetricsResult {
	return compute(EquityCurve(dailyPnL, initialCapital), len(dailyPnL), riskFreeRate)
}

// EquityCurve returns initialCapital followed by the running equity after each day.
func EquityCurve(dailyPnL []float64, initialCapital float64) []float64 {
	equity := make([]float64, 0, len(dailyPnL)+1)
	equity = append(equity, initialCapital)
	running := initialCapital
	for _, p := range dailyPnL {
		running += p
		equity = append(equity, running)
	}
	return equity
}
