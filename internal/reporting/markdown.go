package reporting

import (
	"fmt"
	"strings"
	"time"

	"optionforge/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	res := r.Result

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.StrategyName))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	}
	sb.WriteString(fmt.Sprintf("Underlying: %s | Period: %s to %s | Trading days: %d\n\n",
		r.Definition.UnderlyingTicker, r.StartDate, r.EndDate, len(res.DailyPnL)))

	// Legs
	sb.WriteString("## Legs\n\n")
	sb.WriteString("| # | Action | Qty | Type | Selection | DTE |\n")
	sb.WriteString("|---|--------|-----|------|-----------|-----|\n")
	for i, leg := range r.Definition.Legs {
		sb.WriteString(fmt.Sprintf("| %d | %s | %d | %s | %s | %d |\n",
			i+1, leg.Action, leg.Quantity, leg.Type, legSelection(leg), leg.DTE))
	}
	sb.WriteString("\n")

	// Summary Metrics
	m := res.SummaryMetrics
	sb.WriteString("## Summary Metrics\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", m.TotalReturnPct))
	sb.WriteString(fmt.Sprintf("| Annualized Return | %.2f%% |\n", m.AnnualizedReturnPct))
	sb.WriteString(fmt.Sprintf("| Annualized Volatility | %.2f%% |\n", m.AnnualizedVolatilityPct))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.2f |\n", m.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Sortino Ratio | %.2f |\n", m.SortinoRatio))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", m.MaxDrawdownPct))
	sb.WriteString(fmt.Sprintf("| Win Rate (days) | %.2f%% |\n", m.WinRatePct))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", m.ProfitFactor))
	sb.WriteString(fmt.Sprintf("| Calmar Ratio | %.2f |\n", m.CalmarRatio))
	if n := len(res.DailyPnL); n > 0 {
		sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", res.DailyPnL[n-1].Equity))
	}
	sb.WriteString("\n")

	// Trades
	ts := res.TradeStats
	sb.WriteString("## Trades\n\n")
	if ts.TotalTrades > 0 {
		sb.WriteString("| Trades | Wins | Losses | WinRate | Mean | Median | P10 | P90 | Best | Worst | MaxLossStreak | AvgHold |\n")
		sb.WriteString("|--------|------|--------|---------|------|--------|-----|-----|------|-------|---------------|---------|\n")
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %.2f%% | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %d | %.1f |\n\n",
			ts.TotalTrades, ts.Wins, ts.Losses, ts.WinRatePct, ts.MeanPnL, ts.MedianPnL,
			ts.P10PnL, ts.P90PnL, ts.BestPnL, ts.WorstPnL, ts.MaxConsecutiveLosses, ts.AvgHoldDays))

		sb.WriteString("| Exit Reason | Trades | P&L |\n")
		sb.WriteString("|-------------|--------|-----|\n")
		for _, row := range r.ExitReasons {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f |\n", row.Reason, row.Trades, row.PnL))
		}
	} else {
		sb.WriteString("No closed trades.\n")
	}
	sb.WriteString("\n")

	// Monthly
	sb.WriteString("## Monthly P&L\n\n")
	if len(r.Monthly) > 0 {
		sb.WriteString("| Month | P&L | End Equity |\n")
		sb.WriteString("|-------|-----|------------|\n")
		for _, row := range r.Monthly {
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.2f |\n", row.Month, row.PnL, row.EndEquity))
		}
	} else {
		sb.WriteString("No equity curve available.\n")
	}
	sb.WriteString("\n")

	// Data Quality
	ms := res.MarkStats
	sb.WriteString("## Data Quality\n\n")
	sb.WriteString("| Check | Count |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Quoted marks | %d |\n", ms.Quoted))
	sb.WriteString(fmt.Sprintf("| Modeled marks | %d |\n", ms.Modeled))
	sb.WriteString(fmt.Sprintf("| Skipped marks | %d |\n", ms.Skipped))
	sb.WriteString(fmt.Sprintf("| Skipped entries | %d |\n", res.SkippedEntries))
	implied := 0
	for _, p := range res.UnderlyingPrice {
		if p.Source == domain.PriceSourceImplied {
			implied++
		}
	}
	sb.WriteString(fmt.Sprintf("| Implied underlying prices | %d of %d |\n", implied, len(res.UnderlyingPrice)))
	sb.WriteString("\n")

	return sb.String()
}

func legSelection(leg domain.Leg) string {
	switch {
	case leg.TargetDelta != nil:
		return fmt.Sprintf("delta %.2f", *leg.TargetDelta)
	case leg.StrikeOffset != nil:
		return fmt.Sprintf("offset %+.2f", *leg.StrikeOffset)
	case leg.Strike != nil:
		return fmt.Sprintf("strike %.2f", *leg.Strike)
	}
	return "-"
}
