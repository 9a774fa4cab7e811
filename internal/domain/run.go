package domain

import "time"

// RunStatus is the persisted lifecycle state of a backtest run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// BacktestRun is one submitted backtest and its outcome.
// Corresponds to backtest_runs table.
type BacktestRun struct {
	RunID           string             `json:"run_id"`
	StrategyID      *int64             `json:"strategy_id,omitempty"` // nil for inline definitions
	Definition      StrategyDefinition `json:"strategy_definition"`
	StartDate       Date               `json:"start_date"`
	EndDate         Date               `json:"end_date"`
	Status          RunStatus          `json:"status"`
	ProgressPct     int                `json:"progress_pct"`
	ProgressMessage string             `json:"progress_message,omitempty"`
	ErrorKind       string             `json:"error_kind,omitempty"`
	ErrorMessage    string             `json:"error_message,omitempty"`
	Result          *BacktestResult    `json:"result,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of r.
func (r *BacktestRun) Clone() *BacktestRun {
	c := *r
	if r.StrategyID != nil {
		id := *r.StrategyID
		c.StrategyID = &id
	}
	c.Definition = r.Definition.Clone()
	c.Result = r.Result.Clone()
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// StrategySummary aggregates every backtest run of one strategy.
type StrategySummary struct {
	StrategyID      int64          `json:"strategy_id"`
	TotalRuns       int            `json:"total_runs"`
	CompletedRuns   int            `json:"completed_runs"`
	FailedRuns      int            `json:"failed_runs"`
	ActiveRuns      int            `json:"active_runs"` // PENDING or RUNNING
	FailuresByKind  map[string]int `json:"failures_by_kind,omitempty"`
	MeanReturnPct   float64        `json:"mean_return_pct"`
	MedianReturnPct float64        `json:"median_return_pct"`
	BestReturnPct   float64        `json:"best_return_pct"`
	WorstReturnPct  float64        `json:"worst_return_pct"`
	MeanSharpe      float64        `json:"mean_sharpe"`
	TotalTrades     int            `json:"total_trades"`
	LastCompletedAt *time.Time     `json:"last_completed_at,omitempty"`
}
