// Package dispatcher runs submitted backtests on a worker pool and persists
// their lifecycle: PENDING -> RUNNING -> COMPLETED | FAILED.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"optionforge/internal/backtest"
	"optionforge/internal/domain"
	"optionforge/internal/observability"
	"optionforge/internal/storage"
)

// Errors returned by Submit.
var (
	ErrNoStrategy = errors.New("either strategy id or definition is required")
	ErrClosed     = errors.New("dispatcher is not accepting runs")
)

// Runner executes one backtest. Implemented by *backtest.Engine.
type Runner interface {
	Run(ctx context.Context, req backtest.Request) (*domain.BacktestResult, error)
}

// Options configures a Dispatcher.
type Options struct {
	Runner     Runner                   // required
	Runs       storage.BacktestRunStore // required
	Strategies storage.StrategyStore    // required when submitting by id
	Curves     storage.DailyPnLStore    // optional analytics copy of each equity curve

	Workers   int             // default 1
	QueueSize int             // pending runs buffered before Submit blocks
	Defaults  domain.Settings // applied to unset definition settings

	Metrics *observability.Metrics // nil uses DefaultMetrics
	Logger  *log.Logger            // nil discards
	Now     func() time.Time       // nil uses time.Now
}

// SubmitRequest selects a strategy and a date range.
// Exactly one of StrategyID and Definition is set.
type SubmitRequest struct {
	StrategyID *int64
	Definition *domain.StrategyDefinition
	Start      domain.Date
	End        domain.Date
}

// Dispatcher owns the run queue and the progress subscribers.
type Dispatcher struct {
	runner     Runner
	runs       storage.BacktestRunStore
	strategies storage.StrategyStore
	curves     storage.DailyPnLStore
	workers    int
	defaults   domain.Settings
	metrics    *observability.Metrics
	logger     *log.Logger
	now        func() time.Time

	queue chan job
	wg    sync.WaitGroup

	mu       sync.Mutex
	started  bool
	stopped  chan struct{}
	stopOnce sync.Once

	hub *hub
}

type job struct {
	runID string
	def   domain.StrategyDefinition
	start domain.Date
	end   domain.Date
}

// New creates a Dispatcher. Call Start before submitting.
func New(opts Options) *Dispatcher {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := opts.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	m := opts.Metrics
	if m == nil {
		m = observability.DefaultMetrics
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		runner:     opts.Runner,
		runs:       opts.Runs,
		strategies: opts.Strategies,
		curves:     opts.Curves,
		workers:    workers,
		defaults:   opts.Defaults,
		metrics:    m,
		logger:     logger,
		now:        now,
		queue:      make(chan job, queueSize),
		stopped:    make(chan struct{}),
		hub:        newHub(),
	}
}

// Start launches the workers. They stop when ctx is canceled; runs in
// flight are canceled and recorded as FAILED.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.Printf("Started %d workers", d.workers)
}

// Wait blocks until all workers have exited, then fails runs that were
// queued after the workers stopped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
	d.drain(context.Background(), context.Canceled)
}

// Submit creates a PENDING run and queues it. The returned run is a snapshot
// taken before any worker picks it up.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (*domain.BacktestRun, error) {
	def, err := d.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	run := &domain.BacktestRun{
		RunID:      uuid.NewString(),
		StrategyID: req.StrategyID,
		Definition: def,
		StartDate:  req.Start,
		EndDate:    req.End,
		Status:     domain.RunStatusPending,
		CreatedAt:  d.now().UTC(),
	}
	if err := d.runs.Insert(ctx, run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	j := job{runID: run.RunID, def: def, start: req.Start, end: req.End}
	select {
	case <-d.stopped:
		d.fail(context.WithoutCancel(ctx), run.RunID, backtest.KindCanceled, ErrClosed)
		return nil, ErrClosed
	default:
	}
	select {
	case d.queue <- j:
		d.metrics.DispatcherQueueDepth.Inc()
	case <-d.stopped:
		d.fail(context.WithoutCancel(ctx), run.RunID, backtest.KindCanceled, ErrClosed)
		return nil, ErrClosed
	case <-ctx.Done():
		d.fail(context.WithoutCancel(ctx), run.RunID, backtest.KindCanceled, ctx.Err())
		return nil, ctx.Err()
	}

	d.logger.Printf("Queued run %s (%s %s..%s)", run.RunID, def.UnderlyingTicker, req.Start, req.End)
	return run, nil
}

// resolve returns the definition to run with settings defaults applied.
func (d *Dispatcher) resolve(ctx context.Context, req SubmitRequest) (domain.StrategyDefinition, error) {
	var def domain.StrategyDefinition
	switch {
	case req.Definition != nil && req.StrategyID != nil:
		return def, ErrNoStrategy
	case req.Definition != nil:
		def = req.Definition.Clone()
	case req.StrategyID != nil:
		if d.strategies == nil {
			return def, fmt.Errorf("strategy %d: %w", *req.StrategyID, storage.ErrNotFound)
		}
		s, err := d.strategies.GetByID(ctx, *req.StrategyID)
		if err != nil {
			return def, fmt.Errorf("strategy %d: %w", *req.StrategyID, err)
		}
		def = s.Definition.Clone()
	default:
		return def, ErrNoStrategy
	}
	def.Settings = def.Settings.WithDefaults(d.defaults)
	return def, nil
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.stopOnce.Do(func() { close(d.stopped) })
			d.drain(context.WithoutCancel(ctx), ctx.Err())
			return
		case j := <-d.queue:
			d.metrics.DispatcherQueueDepth.Dec()
			d.execute(ctx, j)
		}
	}
}

// drain fails runs still queued at shutdown so none stays PENDING.
func (d *Dispatcher) drain(ctx context.Context, cause error) {
	for {
		select {
		case j := <-d.queue:
			d.metrics.DispatcherQueueDepth.Dec()
			d.fail(ctx, j.runID, backtest.KindCanceled, cause)
		default:
			return
		}
	}
}

// execute runs one job and records its outcome. Store writes use a context
// detached from cancellation so shutdown still records the final status.
func (d *Dispatcher) execute(ctx context.Context, j job) {
	persistCtx := context.WithoutCancel(ctx)
	started := d.now()

	if err := d.runs.MarkRunning(persistCtx, j.runID, started.UTC()); err != nil {
		d.logger.Printf("Run %s: mark running: %v", j.runID, err)
		return
	}
	d.hub.publish(Progress{RunID: j.runID, Status: domain.RunStatusRunning, State: string(backtest.StateInitializing)})
	d.metrics.BacktestsInFlight.Inc()
	defer d.metrics.BacktestsInFlight.Dec()

	var state backtest.State
	progress := newProgressWriter(persistCtx, d.runs, j.runID, d.logger)
	result, err := d.runner.Run(ctx, backtest.Request{
		Strategy: j.def,
		Start:    j.start,
		End:      j.end,
		OnState:  func(s backtest.State) { state = s },
		Progress: func(pct int, msg string) {
			progress.set(pct, msg)
			d.hub.publish(Progress{
				RunID:   j.runID,
				Status:  domain.RunStatusRunning,
				State:   string(state),
				Pct:     pct,
				Message: msg,
			})
		},
	})
	progress.close()
	elapsed := d.now().Sub(started).Seconds()

	if err != nil {
		kind := backtest.ErrorKind(err)
		d.fail(persistCtx, j.runID, kind, err)
		d.metrics.RecordBacktestRun(string(domain.RunStatusFailed), kind, elapsed)
		d.logger.Printf("Run %s failed (%s): %v", j.runID, kind, err)
		return
	}

	if d.curves != nil {
		if err := d.curves.InsertBulk(persistCtx, j.runID, result.DailyPnL); err != nil {
			d.logger.Printf("Run %s: store daily pnl: %v", j.runID, err)
		}
	}
	completed := d.now().UTC()
	if err := d.runs.Complete(persistCtx, j.runID, result, completed); err != nil {
		d.fail(persistCtx, j.runID, backtest.KindInternal, fmt.Errorf("store result: %w", err))
		d.metrics.RecordBacktestRun(string(domain.RunStatusFailed), backtest.KindInternal, elapsed)
		return
	}

	d.metrics.RecordBacktestRun(string(domain.RunStatusCompleted), "", elapsed)
	d.metrics.RecordBacktestOutput(len(result.DailyPnL), len(result.Trades),
		result.MarkStats.Quoted, result.MarkStats.Modeled, result.MarkStats.Skipped)
	d.metrics.LastCompletedBacktest.Set(float64(completed.Unix()))
	d.hub.finish(Progress{
		RunID:   j.runID,
		Status:  domain.RunStatusCompleted,
		State:   string(backtest.StateDone),
		Pct:     100,
		Message: "Backtest complete.",
	})
	d.logger.Printf("Run %s completed: %d days, %d trades, return %.2f%%",
		j.runID, len(result.DailyPnL), len(result.Trades), result.SummaryMetrics.TotalReturnPct)
}

// fail records a FAILED run and notifies subscribers.
func (d *Dispatcher) fail(ctx context.Context, runID, kind string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := d.runs.Fail(ctx, runID, kind, msg, d.now().UTC()); err != nil {
		d.logger.Printf("Run %s: mark failed: %v", runID, err)
	}
	d.hub.finish(Progress{
		RunID:     runID,
		Status:    domain.RunStatusFailed,
		State:     string(backtest.StateFailed),
		ErrorKind: kind,
		Error:     msg,
	})
}

// Subscribe streams progress of a run. The channel is closed after the
// terminal update or when cancel is called. Updates are dropped while the
// subscriber's buffer is full.
func (d *Dispatcher) Subscribe(runID string) (<-chan Progress, func()) {
	return d.hub.subscribe(runID)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req backtest.Request) (*domain.BacktestResult, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, req backtest.Request) (*domain.BacktestResult, error) {
	return f(ctx, req)
}
