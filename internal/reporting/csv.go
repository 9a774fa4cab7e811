package reporting

import (
	"fmt"
	"strings"

	"optionforge/internal/domain"
)

// RenderEquityCSV renders the daily equity curve as CSV string.
func RenderEquityCSV(points []domain.PnLPoint) string {
	var sb strings.Builder

	sb.WriteString("date,pnl,equity,modeled_marks\n")
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%s,%.2f,%.2f,%d\n", p.Date, p.PnL, p.Equity, p.ModeledMarks))
	}

	return sb.String()
}

// RenderTradesCSV renders closed trades as CSV string, one row per trade.
func RenderTradesCSV(trades []domain.TradeRecord) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,entry_date,exit_date,exit_reason,hold_days,legs,")
	sb.WriteString("entry_premium,exit_premium,costs,realized_pnl\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%d,%.2f,%.2f,%.2f,%.2f\n",
			t.TradeID,
			t.EntryDate,
			t.ExitDate,
			t.ExitReason,
			t.HoldDays,
			len(t.Legs),
			t.EntryPremium,
			t.ExitPremium,
			t.Costs,
			t.RealizedPnL,
		))
	}

	return sb.String()
}
