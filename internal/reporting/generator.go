package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	runs       storage.BacktestRunStore
	strategies storage.StrategyStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runs storage.BacktestRunStore, strategies storage.StrategyStore) *Generator {
	return &Generator{
		runs:       runs,
		strategies: strategies,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of a completed run.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunStatusCompleted || run.Result == nil {
		return nil, fmt.Errorf("run %s is %s, not completed", runID, run.Status)
	}

	name := "Inline strategy"
	if run.StrategyID != nil && g.strategies != nil {
		st, err := g.strategies.GetByID(ctx, *run.StrategyID)
		if err != nil {
			return nil, fmt.Errorf("load strategy %d: %w", *run.StrategyID, err)
		}
		name = st.Name
	}

	r := Build(name, run.StartDate, run.EndDate, run.Result, g.now())
	r.RunID = run.RunID
	return r, nil
}

// Build assembles a report from a result that was never persisted.
func Build(name string, start, end domain.Date, result *domain.BacktestResult, now time.Time) *Report {
	return &Report{
		GeneratedAt:  now,
		StrategyName: name,
		StartDate:    start,
		EndDate:      end,
		Definition:   result.StrategyDefinition,
		Result:       result,
		ExitReasons:  exitReasons(result.Trades),
		Monthly:      monthly(result.DailyPnL),
	}
}

func exitReasons(trades []domain.TradeRecord) []ExitReasonRow {
	byReason := make(map[string]*ExitReasonRow)
	for _, t := range trades {
		row, ok := byReason[t.ExitReason]
		if !ok {
			row = &ExitReasonRow{Reason: t.ExitReason}
			byReason[t.ExitReason] = row
		}
		row.Trades++
		row.PnL += t.RealizedPnL
	}

	rows := make([]ExitReasonRow, 0, len(byReason))
	for _, row := range byReason {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Reason < rows[j].Reason })
	return rows
}

func monthly(points []domain.PnLPoint) []MonthlyRow {
	var rows []MonthlyRow
	for _, p := range points {
		month := p.Date.Time().Format("2006-01")
		if len(rows) == 0 || rows[len(rows)-1].Month != month {
			rows = append(rows, MonthlyRow{Month: month})
		}
		last := &rows[len(rows)-1]
		last.PnL += p.PnL
		last.EndEquity = p.Equity
	}
	return rows
}
