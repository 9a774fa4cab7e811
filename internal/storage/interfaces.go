package storage

import (
	"context"
	"time"

	"optionforge/internal/domain"
)

// Coverage describes the stored history of one underlying.
type Coverage struct {
	Ticker    string
	FirstDate domain.Date
	LastDate  domain.Date
	Days      int   // distinct quote dates
	Quotes    int64 // total rows
}

// OptionQuoteStore provides access to option_quotes storage.
// Unique key: (underlying_ticker, date, expiration, strike, type).
type OptionQuoteStore interface {
	// InsertBulk adds quotes atomically. Fails entire batch on any duplicate
	// (ErrDuplicateKey) or invalid quote (ErrInvalidInput).
	InsertBulk(ctx context.Context, quotes []*domain.OptionQuote) error

	// FetchChain retrieves quotes for ticker with start <= date <= end,
	// ordered by date, expiration, strike, type ASC. Empty result is not an error.
	FetchChain(ctx context.Context, ticker string, start, end domain.Date) ([]*domain.OptionQuote, error)

	// GetChainOnDate retrieves the chain of a single date, ordered by expiration, strike, type.
	GetChainOnDate(ctx context.Context, ticker string, date domain.Date) ([]*domain.OptionQuote, error)

	// GetCoverage summarizes stored history for ticker. Returns ErrNotFound if none.
	GetCoverage(ctx context.Context, ticker string) (*Coverage, error)
}

// UnderlyingCloseStore provides access to underlying_closes storage.
// Implements backtest.UnderlyingProvider.
type UnderlyingCloseStore interface {
	// InsertBulk adds closes atomically. Fails entire batch on any duplicate (ticker, date).
	InsertBulk(ctx context.Context, closes []*domain.UnderlyingClose) error

	// FetchCloses returns closes keyed by date within [start, end].
	FetchCloses(ctx context.Context, ticker string, start, end domain.Date) (map[domain.Date]float64, error)
}

// StrategyStore provides access to strategies storage.
type StrategyStore interface {
	// Insert adds a new strategy and assigns its ID and timestamps.
	// Returns ErrDuplicateKey if the name exists.
	Insert(ctx context.Context, s *domain.Strategy) error

	// GetByID retrieves a strategy. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Strategy, error)

	// List retrieves all strategies ordered by ID ASC.
	List(ctx context.Context) ([]*domain.Strategy, error)
}

// BacktestRunStore provides access to backtest_runs storage.
// Status moves PENDING -> RUNNING -> COMPLETED | FAILED; PENDING may fail directly.
type BacktestRunStore interface {
	// Insert adds a new run in PENDING status. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.BacktestRun) error

	// GetByID retrieves a run with its result. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// ListByStrategy retrieves runs of a strategy ordered by created_at ASC.
	ListByStrategy(ctx context.Context, strategyID int64) ([]*domain.BacktestRun, error)

	// MarkRunning moves a PENDING run to RUNNING.
	MarkRunning(ctx context.Context, runID string, at time.Time) error

	// UpdateProgress records progress of a RUNNING run.
	UpdateProgress(ctx context.Context, runID string, pct int, message string) error

	// Complete stores the result and moves a RUNNING run to COMPLETED.
	Complete(ctx context.Context, runID string, result *domain.BacktestResult, at time.Time) error

	// Fail moves a non-terminal run to FAILED with an error kind and message.
	Fail(ctx context.Context, runID string, kind, message string, at time.Time) error
}

// DailyPnLStore provides access to daily_pnl analytics storage.
type DailyPnLStore interface {
	// InsertBulk adds the equity curve of a run. Fails on duplicate (run_id, date).
	InsertBulk(ctx context.Context, runID string, points []domain.PnLPoint) error

	// GetByRunID retrieves the curve of a run ordered by date ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.PnLPoint, error)
}
