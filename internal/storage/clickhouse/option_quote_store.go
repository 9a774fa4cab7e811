package clickhouse

import (
	"context"
	"fmt"
	"time"

	"optionforge/internal/domain"
	"optionforge/internal/observability"
	"optionforge/internal/storage"
)

// OptionQuoteStore implements storage.OptionQuoteStore using ClickHouse.
// Tables are ReplacingMergeTree, so reads use FINAL and uniqueness is
// checked before insert.
type OptionQuoteStore struct {
	conn *Conn
}

// NewOptionQuoteStore creates a new OptionQuoteStore.
func NewOptionQuoteStore(conn *Conn) *OptionQuoteStore {
	return &OptionQuoteStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OptionQuoteStore = (*OptionQuoteStore)(nil)

const selectOptionQuotes = `
	SELECT
		underlying_ticker, quote_date, expiration_date, strike_price, option_type,
		bid, ask, last_price, volume, open_interest, implied_volatility,
		delta, gamma, theta, vega
	FROM option_quotes FINAL
`

// InsertBulk adds quotes in one batch. Fails entire batch on duplicate
// (intra-batch or against stored rows).
func (s *OptionQuoteStore) InsertBulk(ctx context.Context, quotes []*domain.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	type day struct {
		ticker string
		date   domain.Date
	}
	seen := make(map[domain.QuoteKey]struct{}, len(quotes))
	days := make(map[day]struct{})
	for _, q := range quotes {
		if q == nil {
			return storage.ErrInvalidInput
		}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		if _, exists := seen[q.Key()]; exists {
			return storage.ErrDuplicateKey
		}
		seen[q.Key()] = struct{}{}
		days[day{q.UnderlyingTicker, q.Date}] = struct{}{}
	}

	// Check for duplicates against existing rows, one query per chain day
	for d := range days {
		existing, err := s.GetChainOnDate(ctx, d.ticker, d.date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, q := range existing {
			if _, dup := seen[q.Key()]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO option_quotes (
			underlying_ticker, quote_date, expiration_date, strike_price, option_type,
			bid, ask, last_price, volume, open_interest, implied_volatility,
			delta, gamma, theta, vega
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, q := range quotes {
		err = batch.Append(
			q.UnderlyingTicker, dateArg(q.Date), dateArg(q.Expiration), q.Strike, string(q.Type),
			q.Bid, q.Ask, q.Last, q.Volume, q.OpenInterest, q.ImpliedVolatility,
			q.Delta, q.Gamma, q.Theta, q.Vega,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// FetchChain retrieves quotes within [start, end] ordered by date, expiration, strike, type.
func (s *OptionQuoteStore) FetchChain(ctx context.Context, ticker string, start, end domain.Date) (quotes []*domain.OptionQuote, err error) {
	began := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "fetch_chain", time.Since(began).Seconds(), err)
	}()

	query := selectOptionQuotes + `
		WHERE underlying_ticker = ? AND quote_date >= ? AND quote_date <= ?
		ORDER BY quote_date ASC, expiration_date ASC, strike_price ASC, option_type ASC
	`
	rows, err := s.conn.Query(ctx, query, ticker, dateArg(start), dateArg(end))
	if err != nil {
		return nil, fmt.Errorf("query chain range: %w", err)
	}
	defer rows.Close()

	return scanOptionQuotes(rows)
}

// GetChainOnDate retrieves the chain of one date.
func (s *OptionQuoteStore) GetChainOnDate(ctx context.Context, ticker string, date domain.Date) ([]*domain.OptionQuote, error) {
	query := selectOptionQuotes + `
		WHERE underlying_ticker = ? AND quote_date = ?
		ORDER BY expiration_date ASC, strike_price ASC, option_type ASC
	`
	rows, err := s.conn.Query(ctx, query, ticker, dateArg(date))
	if err != nil {
		return nil, fmt.Errorf("query chain on date: %w", err)
	}
	defer rows.Close()

	return scanOptionQuotes(rows)
}

// GetCoverage summarizes stored history for ticker.
func (s *OptionQuoteStore) GetCoverage(ctx context.Context, ticker string) (*storage.Coverage, error) {
	query := `
		SELECT min(quote_date), max(quote_date), uniqExact(quote_date), count()
		FROM option_quotes FINAL
		WHERE underlying_ticker = ?
	`
	var first, last time.Time
	var days, total uint64
	if err := s.conn.QueryRow(ctx, query, ticker).Scan(&first, &last, &days, &total); err != nil {
		return nil, fmt.Errorf("get coverage: %w", err)
	}
	if total == 0 {
		return nil, storage.ErrNotFound
	}
	return &storage.Coverage{
		Ticker:    ticker,
		FirstDate: domain.DateOf(first),
		LastDate:  domain.DateOf(last),
		Days:      int(days),
		Quotes:    int64(total),
	}, nil
}

// scanOptionQuotes scans multiple rows.
func scanOptionQuotes(rows chRows) ([]*domain.OptionQuote, error) {
	var quotes []*domain.OptionQuote

	for rows.Next() {
		var q domain.OptionQuote
		var date, expiration time.Time
		var typ string

		err := rows.Scan(
			&q.UnderlyingTicker, &date, &expiration, &q.Strike, &typ,
			&q.Bid, &q.Ask, &q.Last, &q.Volume, &q.OpenInterest, &q.ImpliedVolatility,
			&q.Delta, &q.Gamma, &q.Theta, &q.Vega,
		)
		if err != nil {
			return nil, fmt.Errorf("scan option quote row: %w", err)
		}

		q.Date = domain.DateOf(date)
		q.Expiration = domain.DateOf(expiration)
		q.Type = domain.OptionType(typ)
		quotes = append(quotes, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate option quote rows: %w", err)
	}

	return quotes, nil
}
