package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"optionforge/internal/domain"
	"optionforge/internal/observability"
	"optionforge/internal/storage"
)

// OptionQuoteStore implements storage.OptionQuoteStore using PostgreSQL.
type OptionQuoteStore struct {
	pool *Pool
}

// NewOptionQuoteStore creates a new OptionQuoteStore.
func NewOptionQuoteStore(pool *Pool) *OptionQuoteStore {
	return &OptionQuoteStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OptionQuoteStore = (*OptionQuoteStore)(nil)

var optionQuoteColumns = []string{
	"underlying_ticker", "quote_date", "expiration_date", "strike_price", "option_type",
	"bid", "ask", "last_price", "volume", "open_interest", "implied_volatility",
	"delta", "gamma", "theta", "vega",
}

const selectOptionQuotes = `
	SELECT
		underlying_ticker, quote_date, expiration_date, strike_price, option_type,
		bid, ask, last_price, volume, open_interest, implied_volatility,
		delta, gamma, theta, vega
	FROM option_quotes
`

// InsertBulk copies quotes in one transaction. Fails entire batch on any duplicate.
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

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		rows := pgx.CopyFromSlice(len(quotes), func(i int) ([]any, error) {
			q := quotes[i]
			return []any{
				q.UnderlyingTicker, dateArg(q.Date), dateArg(q.Expiration), q.Strike, string(q.Type),
				q.Bid, q.Ask, q.Last, q.Volume, q.OpenInterest, q.ImpliedVolatility,
				q.Delta, q.Gamma, q.Theta, q.Vega,
			}, nil
		})
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"option_quotes"}, optionQuoteColumns, rows); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("copy option quotes: %w", err)
		}
		return nil
	})
}

// FetchChain retrieves quotes within [start, end] ordered by date, expiration, strike, type.
func (s *OptionQuoteStore) FetchChain(ctx context.Context, ticker string, start, end domain.Date) ([]*domain.OptionQuote, error) {
	query := selectOptionQuotes + `
		WHERE underlying_ticker = $1 AND quote_date BETWEEN $2 AND $3
		ORDER BY quote_date ASC, expiration_date ASC, strike_price ASC, option_type ASC
	`
	return s.query(ctx, query, ticker, dateArg(start), dateArg(end))
}

// GetChainOnDate retrieves the chain of one date.
func (s *OptionQuoteStore) GetChainOnDate(ctx context.Context, ticker string, date domain.Date) ([]*domain.OptionQuote, error) {
	query := selectOptionQuotes + `
		WHERE underlying_ticker = $1 AND quote_date = $2
		ORDER BY expiration_date ASC, strike_price ASC, option_type ASC
	`
	return s.query(ctx, query, ticker, dateArg(date))
}

// GetCoverage summarizes stored history for ticker.
func (s *OptionQuoteStore) GetCoverage(ctx context.Context, ticker string) (*storage.Coverage, error) {
	query := `
		SELECT MIN(quote_date), MAX(quote_date), COUNT(DISTINCT quote_date), COUNT(*)
		FROM option_quotes
		WHERE underlying_ticker = $1
	`
	var first, last *time.Time
	var days int
	var total int64
	if err := s.pool.QueryRow(ctx, query, ticker).Scan(&first, &last, &days, &total); err != nil {
		return nil, fmt.Errorf("get coverage: %w", err)
	}
	if total == 0 || first == nil || last == nil {
		return nil, storage.ErrNotFound
	}
	return &storage.Coverage{
		Ticker:    ticker,
		FirstDate: scanDate(*first),
		LastDate:  scanDate(*last),
		Days:      days,
		Quotes:    total,
	}, nil
}

func (s *OptionQuoteStore) query(ctx context.Context, query string, args ...any) (result []*domain.OptionQuote, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "select_option_quotes", time.Since(start).Seconds(), err)
	}()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query option quotes: %w", err)
	}
	defer rows.Close()

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

func scanOptionQuote(row pgx.Row) (*domain.OptionQuote, error) {
	var q domain.OptionQuote
	var date, expiration time.Time
	var typ string
	err := row.Scan(
		&q.UnderlyingTicker, &date, &expiration, &q.Strike, &typ,
		&q.Bid, &q.Ask, &q.Last, &q.Volume, &q.OpenInterest, &q.ImpliedVolatility,
		&q.Delta, &q.Gamma, &q.Theta, &q.Vega,
	)
	if err != nil {
		return nil, err
	}
	q.Date = scanDate(date)
	q.Expiration = scanDate(expiration)
	q.Type = domain.OptionType(typ)
	return &q, nil
}
