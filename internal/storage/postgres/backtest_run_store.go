package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
// Definition and result are stored as JSONB.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const selectBacktestRuns = `
	SELECT
		run_id, strategy_id, definition, start_date, end_date,
		status, progress_pct, progress_message, error_kind, error_message,
		result, created_at, started_at, completed_at
	FROM backtest_runs
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists and
// ErrNotFound if the referenced strategy does not exist.
func (s *BacktestRunStore) Insert(ctx context.Context, run *domain.BacktestRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}
	def, err := json.Marshal(run.Definition)
	if err != nil {
		return fmt.Errorf("encode run definition: %w", err)
	}
	result, err := encodeResult(run.Result)
	if err != nil {
		return err
	}
	status := run.Status
	if status == "" {
		status = domain.RunStatusPending
	}

	query := `
		INSERT INTO backtest_runs (
			run_id, strategy_id, definition, start_date, end_date,
			status, progress_pct, progress_message, error_kind, error_message,
			result, created_at, started_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)
	`
	_, err = s.pool.Exec(ctx, query,
		run.RunID, run.StrategyID, def, dateArg(run.StartDate), dateArg(run.EndDate),
		string(status), run.ProgressPct, run.ProgressMessage, run.ErrorKind, run.ErrorMessage,
		result, run.CreatedAt, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			return storage.ErrDuplicateKey
		case isForeignKeyError(err):
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run with its result. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	run, err := scanBacktestRun(s.pool.QueryRow(ctx, selectBacktestRuns+` WHERE run_id = $1`, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return run, nil
}

// ListByStrategy retrieves runs of a strategy ordered by created_at ASC.
func (s *BacktestRunStore) ListByStrategy(ctx context.Context, strategyID int64) ([]*domain.BacktestRun, error) {
	rows, err := s.pool.Query(ctx, selectBacktestRuns+`
		WHERE strategy_id = $1
		ORDER BY created_at ASC, run_id ASC
	`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("query backtest runs: %w", err)
	}
	defer rows.Close()

	var result []*domain.BacktestRun
	for rows.Next() {
		run, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest runs: %w", err)
	}
	return result, nil
}

// MarkRunning moves a PENDING run to RUNNING.
func (s *BacktestRunStore) MarkRunning(ctx context.Context, runID string, at time.Time) error {
	return s.transition(ctx, runID, `
		UPDATE backtest_runs SET status = 'RUNNING', started_at = $2
		WHERE run_id = $1 AND status = 'PENDING'
	`, at)
}

// UpdateProgress records progress of a RUNNING run.
func (s *BacktestRunStore) UpdateProgress(ctx context.Context, runID string, pct int, message string) error {
	return s.transition(ctx, runID, `
		UPDATE backtest_runs SET progress_pct = $2, progress_message = $3
		WHERE run_id = $1 AND status = 'RUNNING'
	`, pct, message)
}

// Complete stores the result and moves a RUNNING run to COMPLETED.
func (s *BacktestRunStore) Complete(ctx context.Context, runID string, result *domain.BacktestResult, at time.Time) error {
	if result == nil {
		return storage.ErrInvalidInput
	}
	encoded, err := encodeResult(result)
	if err != nil {
		return err
	}
	return s.transition(ctx, runID, `
		UPDATE backtest_runs SET status = 'COMPLETED', progress_pct = 100, result = $2, completed_at = $3
		WHERE run_id = $1 AND status = 'RUNNING'
	`, encoded, at)
}

// Fail moves a non-terminal run to FAILED.
func (s *BacktestRunStore) Fail(ctx context.Context, runID string, kind, message string, at time.Time) error {
	return s.transition(ctx, runID, `
		UPDATE backtest_runs SET status = 'FAILED', error_kind = $2, error_message = $3, completed_at = $4
		WHERE run_id = $1 AND status IN ('PENDING', 'RUNNING')
	`, kind, message, at)
}

// transition executes a guarded UPDATE. When no row matches, the run either
// does not exist (ErrNotFound) or is in the wrong status (ErrInvalidTransition).
func (s *BacktestRunStore) transition(ctx context.Context, runID, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, append([]any{runID}, args...)...)
	if err != nil {
		return fmt.Errorf("update backtest run %s: %w", runID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM backtest_runs WHERE run_id = $1)`, runID).Scan(&exists); err != nil {
		return fmt.Errorf("check backtest run %s: %w", runID, err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrInvalidTransition
}

func encodeResult(result *domain.BacktestResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode backtest result: %w", err)
	}
	return b, nil
}

func scanBacktestRun(row pgx.Row) (*domain.BacktestRun, error) {
	var run domain.BacktestRun
	var def, result []byte
	var start, end time.Time
	var status string
	err := row.Scan(
		&run.RunID, &run.StrategyID, &def, &start, &end,
		&status, &run.ProgressPct, &run.ProgressMessage, &run.ErrorKind, &run.ErrorMessage,
		&result, &run.CreatedAt, &run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	run.StartDate = scanDate(start)
	run.EndDate = scanDate(end)
	run.Status = domain.RunStatus(status)
	if err := json.Unmarshal(def, &run.Definition); err != nil {
		return nil, fmt.Errorf("decode run %s definition: %w", run.RunID, err)
	}
	if result != nil {
		run.Result = &domain.BacktestResult{}
		if err := json.Unmarshal(result, run.Result); err != nil {
			return nil, fmt.Errorf("decode run %s result: %w", run.RunID, err)
		}
	}
	return &run, nil
}
