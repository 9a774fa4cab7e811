package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// PnLPoint is one trading day of the equity curve.
type PnLPoint struct {
	Date         Date    `json:"date"`
	PnL          float64 `json:"pnl"`
	Equity       float64 `json:"equity"`
	ModeledMarks int     `json:"modeled_marks,omitempty"` // positions marked by the pricing model
}

// PriceSource tells whether an underlying price was observed or derived.
type PriceSource string

const (
	PriceSourceObserved PriceSource = "observed"
	PriceSourceImplied  PriceSource = "implied" // put-call parity on the option chain
)

// PricePoint is the underlying close used for a trading day.
type PricePoint struct {
	Date   Date        `json:"date"`
	Price  float64     `json:"price"`
	Source PriceSource `json:"source"`
}

// ProfitFactor is gross profit over gross loss. Unbounded marks the
// no-losing-days case, which is serialized as the string "inf".
type ProfitFactor struct {
	Value     float64
	Unbounded bool
}

// Float returns the factor as a float, +Inf when unbounded.
func (p ProfitFactor) Float() float64 {
	if p.Unbounded {
		return math.Inf(1)
	}
	return p.Value
}

func (p ProfitFactor) String() string {
	if p.Unbounded {
		return "inf"
	}
	return fmt.Sprintf("%.2f", p.Value)
}

func (p ProfitFactor) MarshalJSON() ([]byte, error) {
	if p.Unbounded {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(p.Value)
}

func (p *ProfitFactor) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte(`"inf"`)) {
		*p = ProfitFactor{Unbounded: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("profit factor: %w", err)
	}
	*p = ProfitFactor{Value: v}
	return nil
}

// MetricsResult holds summary statistics, each rounded to 2 decimals.
type MetricsResult struct {
	TotalReturnPct          float64      `json:"total_return_pct"`
	AnnualizedReturnPct     float64      `json:"annualized_return_pct"`
	AnnualizedVolatilityPct float64      `json:"annualized_volatility_pct"`
	SharpeRatio             float64      `json:"sharpe_ratio"`
	SortinoRatio            float64      `json:"sortino_ratio"`
	MaxDrawdownPct          float64      `json:"max_drawdown_pct"`
	WinRatePct              float64      `json:"win_rate_pct"`
	ProfitFactor            ProfitFactor `json:"profit_factor"`
	CalmarRatio             float64      `json:"calmar_ratio"`
}

// TradeStats summarizes closed trades of a run.
type TradeStats struct {
	TotalTrades          int     `json:"total_trades"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRatePct           float64 `json:"win_rate_pct"`
	MeanPnL              float64 `json:"mean_pnl"`
	MedianPnL            float64 `json:"median_pnl"`
	P10PnL               float64 `json:"p10_pnl"`
	P90PnL               float64 `json:"p90_pnl"`
	BestPnL              float64 `json:"best_pnl"`
	WorstPnL             float64 `json:"worst_pnl"`
	StddevPnL            float64 `json:"stddev_pnl"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	AvgHoldDays          float64 `json:"avg_hold_days"`
}

// MarkStats counts position marks by source over a run.
type MarkStats struct {
	Quoted  int `json:"quoted"`
	Modeled int `json:"modeled"`
	Skipped int `json:"skipped"` // model could not price; previous mark carried
}

// BacktestResult is the output of a completed run.
type BacktestResult struct {
	SummaryMetrics     MetricsResult      `json:"summary_metrics"`
	DailyPnL           []PnLPoint         `json:"daily_pnl"`
	UnderlyingPrice    []PricePoint       `json:"underlying_price"`
	StrategyDefinition StrategyDefinition `json:"strategy_definition"`
	Trades             []TradeRecord      `json:"trades"`
	TradeStats         TradeStats         `json:"trade_stats"`
	MarkStats          MarkStats          `json:"mark_stats"`
	SkippedEntries     int                `json:"skipped_entries"` // entry days with no matching contract
}

// Clone returns a deep copy of r.
func (r *BacktestResult) Clone() *BacktestResult {
	if r == nil {
		return nil
	}
	c := *r
	c.DailyPnL = append([]PnLPoint(nil), r.DailyPnL...)
	c.UnderlyingPrice = append([]PricePoint(nil), r.UnderlyingPrice...)
	c.StrategyDefinition = r.StrategyDefinition.Clone()
	c.Trades = make([]TradeRecord, len(r.Trades))
	for i, t := range r.Trades {
		t.Legs = append([]LegFill(nil), t.Legs...)
		c.Trades[i] = t
	}
	return &c
}
