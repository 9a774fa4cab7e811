package clickhouse

import (
	"context"
	"fmt"
	"time"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// DailyPnLStore implements storage.DailyPnLStore using ClickHouse.
type DailyPnLStore struct {
	conn *Conn
}

// NewDailyPnLStore creates a new DailyPnLStore.
func NewDailyPnLStore(conn *Conn) *DailyPnLStore {
	return &DailyPnLStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DailyPnLStore = (*DailyPnLStore)(nil)

// InsertBulk adds the curve of a run. Fails entire batch on duplicate (run_id, date).
func (s *DailyPnLStore) InsertBulk(ctx context.Context, runID string, points []domain.PnLPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	seen := make(map[domain.Date]struct{}, len(points))
	for _, p := range points {
		if _, exists := seen[p.Date]; exists {
			return storage.ErrDuplicateKey
		}
		seen[p.Date] = struct{}{}
	}

	exists, err := s.exists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_pnl (run_id, pnl_date, pnl, equity, modeled_marks)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(runID, dateArg(p.Date), p.PnL, p.Equity, uint32(p.ModeledMarks)); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves the curve of a run ordered by date ASC.
func (s *DailyPnLStore) GetByRunID(ctx context.Context, runID string) ([]domain.PnLPoint, error) {
	query := `
		SELECT pnl_date, pnl, equity, modeled_marks
		FROM daily_pnl FINAL
		WHERE run_id = ?
		ORDER BY pnl_date ASC
	`
	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query daily pnl: %w", err)
	}
	defer rows.Close()

	var points []domain.PnLPoint
	for rows.Next() {
		var p domain.PnLPoint
		var date time.Time
		var modeled uint32
		if err := rows.Scan(&date, &p.PnL, &p.Equity, &modeled); err != nil {
			return nil, fmt.Errorf("scan daily pnl row: %w", err)
		}
		p.Date = domain.DateOf(date)
		p.ModeledMarks = int(modeled)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily pnl rows: %w", err)
	}
	return points, nil
}

// exists checks whether any point of the run is stored. A run's curve is written once.
func (s *DailyPnLStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM daily_pnl FINAL WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
