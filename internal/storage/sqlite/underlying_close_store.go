package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// UnderlyingCloseStore implements storage.UnderlyingCloseStore using SQLite.
type UnderlyingCloseStore struct {
	db *DB
}

// NewUnderlyingCloseStore creates a new UnderlyingCloseStore.
func NewUnderlyingCloseStore(db *DB) *UnderlyingCloseStore {
	return &UnderlyingCloseStore{db: db}
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

	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range closes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO underlying_closes (ticker, close_date, close) VALUES (?, ?, ?)`,
				c.Ticker, dateArg(c.Date), c.Close)
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert underlying close: %w", err)
			}
		}
		return nil
	})
}

// FetchCloses returns closes keyed by date within [start, end].
func (s *UnderlyingCloseStore) FetchCloses(ctx context.Context, ticker string, start, end domain.Date) (map[domain.Date]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT close_date, close
		FROM underlying_closes
		WHERE ticker = ? AND close_date BETWEEN ? AND ?
	`, ticker, dateArg(start), dateArg(end))
	if err != nil {
		return nil, fmt.Errorf("query underlying closes: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Date]float64)
	for rows.Next() {
		var date string
		var price float64
		if err := rows.Scan(&date, &price); err != nil {
			return nil, fmt.Errorf("scan underlying close: %w", err)
		}
		d, err := scanDate(date)
		if err != nil {
			return nil, err
		}
		out[d] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate underlying closes: %w", err)
	}
	return out, nil
}
