package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// UnderlyingCloseStore implements storage.UnderlyingCloseStore using PostgreSQL.
type UnderlyingCloseStore struct {
	pool *Pool
}

// NewUnderlyingCloseStore creates a new UnderlyingCloseStore.
func NewUnderlyingCloseStore(pool *Pool) *UnderlyingCloseStore {
	return &UnderlyingCloseStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UnderlyingCloseStore = (*UnderlyingCloseStore)(nil)

// InsertBulk adds closes atomically. Fails entire batch on any duplicate.
func (s *UnderlyingCloseStore) InsertBulk(ctx context.Context, closes []*domain.UnderlyingClose) error {
	if len(closes) == 0 {
		return nil
	}
	for _, c := range closes {
		if c == nil || c.Ticker == "" || c.Date.IsZero() || c.Close <= 0 {
			return storage.ErrInvalidInput
		}
	}

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range closes {
			batch.Queue(`INSERT INTO underlying_closes (ticker, close_date, close) VALUES ($1, $2, $3)`,
				c.Ticker, dateArg(c.Date), c.Close)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert underlying closes: %w", err)
		}
		return nil
	})
}

// FetchCloses returns closes keyed by date within [start, end].
func (s *UnderlyingCloseStore) FetchCloses(ctx context.Context, ticker string, start, end domain.Date) (map[domain.Date]float64, error) {
	query := `
		SELECT close_date, close
		FROM underlying_closes
		WHERE ticker = $1 AND close_date BETWEEN $2 AND $3
	`
	rows, err := s.pool.Query(ctx, query, ticker, dateArg(start), dateArg(end))
	if err != nil {
		return nil, fmt.Errorf("query underlying closes: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Date]float64)
	for rows.Next() {
		var date time.Time
		var price float64
		if err := rows.Scan(&date, &price); err != nil {
			return nil, fmt.Errorf("scan underlying close: %w", err)
		}
		out[scanDate(date)] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate underlying closes: %w", err)
	}
	return out, nil
}
