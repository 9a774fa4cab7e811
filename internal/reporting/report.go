package reporting

import (
	"time"

	"optionforge/internal/domain"
)

// Report is a rendered-ready view of one backtest run.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	RunID        string // empty for unpersisted runs
	StrategyName string
	StartDate    domain.Date
	EndDate      domain.Date

	Definition domain.StrategyDefinition
	Result     *domain.BacktestResult

	// Per exit reason trade counts, sorted by reason
	ExitReasons []ExitReasonRow

	// Monthly P&L, sorted by month
	Monthly []MonthlyRow
}

// ExitReasonRow counts closed trades by exit reason.
type ExitReasonRow struct {
	Reason string
	Trades int
	PnL    float64
}

// MonthlyRow sums daily P&L over one calendar month.
type MonthlyRow struct {
	Month     string // YYYY-MM
	PnL       float64
	EndEquity float64
}
