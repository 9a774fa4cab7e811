// Package backtest runs option strategies day by day over historical chains.
package backtest

import (
	"context"
	"fmt"
	"io"
	"log"

	"optionforge/internal/domain"
	"optionforge/internal/metrics"
)

// Options configures an Engine.
type Options struct {
	Provider   ChainProvider      // required
	Underlying UnderlyingProvider // optional observed closes
	Logger     *log.Logger        // nil discards
}

// Engine executes backtests. It holds only immutable configuration and is
// safe for concurrent Run calls; each run owns its own portfolio.
type Engine struct {
	provider   ChainProvider
	underlying UnderlyingProvider
	logger     *log.Logger
}

// NewEngine creates a new backtest engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		provider:   opts.Provider,
		underlying: opts.Underlying,
		logger:     logger,
	}
}

// Request is one backtest invocation.
type Request struct {
	Strategy domain.StrategyDefinition
	Start    domain.Date
	End      domain.Date
	Progress ProgressFunc // optional
	OnState  StateFunc    // optional, called synchronously on every transition
}

// Run executes the state machine
// INITIALIZING -> FETCHING_DATA -> SIMULATING -> COMPUTING_METRICS -> DONE.
// Any failure moves the run to FAILED and returns the error with a nil result.
// ctx is checked before every simulated day.
func (e *Engine) Run(ctx context.Context, req Request) (*domain.BacktestResult, error) {
	r := &runState{logger: e.logger, onState: req.OnState, progress: newProgressReporter(req.Progress, e.logger)}

	r.enter(StateInitializing)
	r.progress.report(progressStart, "Starting backtest...")
	def := req.Strategy.Clone()
	if err := Validate(def); err != nil {
		return r.fail(err)
	}
	if err := validateRange(req.Start, req.End); err != nil {
		return r.fail(err)
	}
	rate := def.Settings.Rate()

	r.enter(StateFetchingData)
	r.progress.report(progressFetchStart, fmt.Sprintf("Fetching data for %s...", def.UnderlyingTicker))
	if e.provider == nil {
		return r.fail(fmt.Errorf("backtest engine has no chain provider"))
	}
	quotes, err := e.provider.FetchChain(ctx, def.UnderlyingTicker, req.Start, req.End)
	if err != nil {
		return r.fail(fmt.Errorf("fetch option chain: %w", err))
	}
	days := buildCalendar(quotes, def.UnderlyingTicker, req.Start, req.End)
	if len(days) == 0 {
		return r.fail(&DataNotFoundError{Ticker: def.UnderlyingTicker, Start: req.Start, End: req.End})
	}
	prices, spots, err := e.underlyingSeries(ctx, def.UnderlyingTicker, req.Start, req.End, days, rate)
	if err != nil {
		return r.fail(err)
	}
	e.logger.Printf("%s: %d quotes over %d trading days, %d underlying prices",
		def.UnderlyingTicker, len(quotes), len(days), len(prices))
	r.progress.report(progressFetchDone, "Data fetched successfully.")

	r.enter(StateSimulating)
	r.progress.report(progressSimStart, "Simulating trades...")
	sim := newSimulation(def, e.logger)
	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}
		spot, hasSpot := spots[day.date]
		if err := sim.step(day, spot, hasSpot); err != nil {
			return r.fail(err)
		}
		r.progress.simulating(i+1, len(days), fmt.Sprintf("Simulated %s", day.date))
	}

	r.enter(StateComputingMetrics)
	r.progress.report(progressSimEnd, "Calculating performance metrics...")
	dailyPnL := make([]float64, len(sim.points))
	for i, p := range sim.points {
		dailyPnL[i] = p.PnL
	}
	result := &domain.BacktestResult{
		SummaryMetrics:     metrics.ComputeFromPnL(dailyPnL, def.Settings.Capital(), rate),
		DailyPnL:           sim.points,
		UnderlyingPrice:    prices,
		StrategyDefinition: def,
		Trades:             sim.book.closed,
		TradeStats:         metrics.SummarizeTrades(sim.book.closed),
		MarkStats:          sim.stats,
		SkippedEntries:     sim.skipped,
	}
	if result.Trades == nil {
		result.Trades = []domain.TradeRecord{}
	}

	r.enter(StateDone)
	r.progress.report(progressComplete, "Backtest complete.")
	return result, nil
}

// underlyingSeries returns the per-day underlying price, observed when the
// UnderlyingProvider has it and implied from put-call parity otherwise.
// Days with neither have no price.
func (e *Engine) underlyingSeries(ctx context.Context, ticker string, start, end domain.Date, days []*chainDay, rate float64) ([]domain.PricePoint, map[domain.Date]float64, error) {
	var observed map[domain.Date]float64
	if e.underlying != nil {
		closes, err := e.underlying.FetchCloses(ctx, ticker, start, end)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch underlying closes: %w", err)
		}
		observed = closes
	}

	points := make([]domain.PricePoint, 0, len(days))
	spots := make(map[domain.Date]float64, len(days))
	for _, d := range days {
		if p, ok := observed[d.date]; ok && p > 0 {
			points = append(points, domain.PricePoint{Date: d.date, Price: p, Source: domain.PriceSourceObserved})
			spots[d.date] = p
			continue
		}
		if p, ok := d.impliedSpot(rate); ok {
			points = append(points, domain.PricePoint{Date: d.date, Price: p, Source: domain.PriceSourceImplied})
			spots[d.date] = p
		}
	}
	return points, spots, nil
}

// runState tracks the state machine of one run.
type runState struct {
	state    State
	onState  StateFunc
	logger   *log.Logger
	progress *progressReporter
}

func (r *runState) enter(s State) {
	r.state = s
	if r.onState != nil {
		r.onState(s)
	}
}

func (r *runState) fail(err error) (*domain.BacktestResult, error) {
	r.logger.Printf("run failed in %s: %v", r.state, err)
	r.enter(StateFailed)
	return nil, err
}
