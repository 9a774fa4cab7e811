package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// OptionQuoteStore implements storage.OptionQuoteStore using SQLite.
type OptionQuoteStore struct {
	db *DB
}

// NewOptionQuoteStore creates a new OptionQuoteStore.
func NewOptionQuoteStore(db *DB) *OptionQuoteStore {
	return &OptionQuoteStore{db: db}
}

// Compile-time interface check.
var _ storage.OptionQuoteStore = (*OptionQuoteStore)(nil)

const selectOptionQuotes = `
	SELECT
		underlying_ticker, quote_date, expiration_date, strike_price, option_type,
		bid, ask, last_price, volume, open_interest, implied_volatility,
		delta, gamma, theta, vega
	FROM option_quotes
`

const insertOptionQuote = `
	INSERT INTO option_quotes (
		underlying_ticker, quote_date, expiration_date, strike_price, option_type,
		bid, ask, last_price, volume, open_interest, implied_volatility,
		delta, gamma, theta, vega
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertBulk inserts quotes in one transaction. Fails entire batch on any duplicate.
func (s *OptionQuoteStore) InsertBulk(ctx context.Context, quotes []*domain.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	for _, q := range quotes {
		if q == nil {
			return storage.ErrInvalidInput
		}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}

	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertOptionQuote)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, q := range quotes {
			_, err := stmt.ExecContext(ctx,
				q.UnderlyingTicker, dateArg(q.Date), dateArg(q.Expiration), q.Strike, string(q.Type),
				q.Bid, q.Ask, q.Last, q.Volume, q.OpenInterest, q.ImpliedVolatility,
				nullFloat(q.Delta), nullFloat(q.Gamma), nullFloat(q.Theta), nullFloat(q.Vega),
			)
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert option quote: %w", err)
			}
		}
		return nil
	})
}

// FetchChain retrieves quotes within [start, end] ordered by date, expiration, strike, type.
func (s *OptionQuoteStore) FetchChain(ctx context.Context, ticker string, start, end domain.Date) ([]*domain.OptionQuote, error) {
	query := selectOptionQuotes + `
		WHERE underlying_ticker = ? AND quote_date BETWEEN ? AND ?
		ORDER BY quote_date ASC, expiration_date ASC, strike_price ASC, option_type ASC
	`
	return s.query(ctx, query, ticker, dateArg(start), dateArg(end))
}

// GetChainOnDate retrieves the chain of one date.
func (s *OptionQuoteStore) GetChainOnDate(ctx context.Context, ticker string, date domain.Date) ([]*domain.OptionQuote, error) {
	query := selectOptionQuotes + `
		WHERE underlying_ticker = ? AND quote_date = ?
		ORDER BY expiration_date ASC, strike_price ASC, option_type ASC
	`
	return s.query(ctx, query, ticker, dateArg(date))
}

// GetCoverage summarizes stored history for ticker.
func (s *OptionQuoteStore) GetCoverage(ctx context.Context, ticker string) (*storage.Coverage, error) {
	query := `
		SELECT MIN(quote_date), MAX(quote_date), COUNT(DISTINCT quote_date), COUNT(*)
		FROM option_quotes
		WHERE underlying_ticker = ?
	`
	var first, last sql.NullString
	var days int
	var total int64
	if err := s.db.QueryRowContext(ctx, query, ticker).Scan(&first, &last, &days, &total); err != nil {
		return nil, fmt.Errorf("get coverage: %w", err)
	}
	if total == 0 || !first.Valid || !last.Valid {
		return nil, storage.ErrNotFound
	}

	cov := &storage.Coverage{Ticker: ticker, Days: days, Quotes: total}
	var err error
	if cov.FirstDate, err = scanDate(first.String); err != nil {
		return nil, err
	}
	if cov.LastDate, err = scanDate(last.String); err != nil {
		return nil, err
	}
	return cov, nil
}

func (s *OptionQuoteStore) query(ctx context.Context, query string, args ...any) ([]*domain.OptionQuote, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query option quotes: %w", err)
	}
	defer rows.Close()

	var result []*domain.OptionQuote
	for rows.Next() {
		q, err := scanOptionQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan option quote: %w", err)
		}
		result = append(result, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate option quotes: %w", err)
	}
	return result, nil
}

func scanOptionQuote(rows *sql.Rows) (*domain.OptionQuote, error) {
	var q domain.OptionQuote
	var date, expiration, typ string
	var delta, gamma, theta, vega sql.NullFloat64
	err := rows.Scan(
		&q.UnderlyingTicker, &date, &expiration, &q.Strike, &typ,
		&q.Bid, &q.Ask, &q.Last, &q.Volume, &q.OpenInterest, &q.ImpliedVolatility,
		&delta, &gamma, &theta, &vega,
	)
	if err != nil {
		return nil, err
	}
	if q.Date, err = scanDate(date); err != nil {
		return nil, err
	}
	if q.Expiration, err = scanDate(expiration); err != nil {
		return nil, err
	}
	q.Type = domain.OptionType(typ)
	q.Delta = floatPtr(delta)
	q.Gamma = floatPtr(gamma)
	q.Theta = floatPtr(theta)
	q.Vega = floatPtr(vega)
	return &q, nil
}
