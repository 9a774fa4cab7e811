// Package parquet implements an option chain archive on Parquet files.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/parquet-go/parquet-go"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// QuoteRecord is the Parquet schema of one option quote.
type QuoteRecord struct {
	Date              string   `parquet:"quote_date"`
	UnderlyingTicker  string   `parquet:"underlying_ticker"`
	Expiration        string   `parquet:"expiration_date"`
	Strike            float64  `parquet:"strike_price"`
	Type              string   `parquet:"option_type"`
	Bid               float64  `parquet:"bid"`
	Ask               float64  `parquet:"ask"`
	Last              float64  `parquet:"last_price"`
	Volume            int64    `parquet:"volume"`
	OpenInterest      int64    `parquet:"open_interest"`
	ImpliedVolatility float64  `parquet:"implied_volatility"`
	Delta             *float64 `parquet:"delta,optional"`
	Gamma             *float64 `parquet:"gamma,optional"`
	Theta             *float64 `parquet:"theta,optional"`
	Vega              *float64 `parquet:"vega,optional"`
}

// ToRecord converts a quote to its on-disk form.
func ToRecord(q *domain.OptionQuote) QuoteRecord {
	c := q.Clone()
	return QuoteRecord{
		Date:              c.Date.String(),
		UnderlyingTicker:  c.UnderlyingTicker,
		Expiration:        c.Expiration.String(),
		Strike:            c.Strike,
		Type:              string(c.Type),
		Bid:               c.Bid,
		Ask:               c.Ask,
		Last:              c.Last,
		Volume:            c.Volume,
		OpenInterest:      c.OpenInterest,
		ImpliedVolatility: c.ImpliedVolatility,
		Delta:             c.Delta,
		Gamma:             c.Gamma,
		Theta:             c.Theta,
		Vega:              c.Vega,
	}
}

// Quote converts a record back to a domain quote.
func (r QuoteRecord) Quote() (*domain.OptionQuote, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return nil, err
	}
	expiration, err := domain.ParseDate(r.Expiration)
	if err != nil {
		return nil, err
	}
	q := &domain.OptionQuote{
		Date:              date,
		UnderlyingTicker:  r.UnderlyingTicker,
		Expiration:        expiration,
		Strike:            r.Strike,
		Type:              domain.OptionType(r.Type),
		Bid:               r.Bid,
		Ask:               r.Ask,
		Last:              r.Last,
		Volume:            r.Volume,
		OpenInterest:      r.OpenInterest,
		ImpliedVolatility: r.ImpliedVolatility,
		Delta:             r.Delta,
		Gamma:             r.Gamma,
		Theta:             r.Theta,
		Vega:              r.Vega,
	}
	return q.Clone(), nil
}

// ReadQuotes reads every record of a Parquet file as domain quotes.
func ReadQuotes(path string) ([]*domain.OptionQuote, error) {
	records, err := readParquetFile[QuoteRecord](path)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.OptionQuote, 0, len(records))
	for i, r := range records {
		q, err := r.Quote()
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// OptionQuoteStore implements storage.OptionQuoteStore on Parquet files.
// Each chain lives in its own file:
//
//	<dataDir>/options/<TICKER>/<YYYY-MM-DD>.parquet
type OptionQuoteStore struct {
	mu      sync.RWMutex
	dataDir string
}

// NewOptionQuoteStore creates a store rooted at dataDir.
func NewOptionQuoteStore(dataDir string) *OptionQuoteStore {
	return &OptionQuoteStore{dataDir: dataDir}
}

// Compile-time interface check.
var _ storage.OptionQuoteStore = (*OptionQuoteStore)(nil)

// InsertBulk writes quotes grouped by (ticker, date). Fails entire batch on
// any duplicate against existing files or within the batch.
func (s *OptionQuoteStore) InsertBulk(_ context.Context, quotes []*domain.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	type fileKey struct {
		ticker string
		date   domain.Date
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[fileKey][]*domain.OptionQuote)
	batchKeys := make(map[domain.QuoteKey]struct{}, len(quotes))
	for _, q := range quotes {
		if q == nil {
			return storage.ErrInvalidInput
		}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		key := q.Key()
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
		fk := fileKey{ticker: q.UnderlyingTicker, date: q.Date}
		groups[fk] = append(groups[fk], q)
	}

	// First pass: load existing chains and reject overlaps before writing anything.
	merged := make(map[string][]QuoteRecord, len(groups))
	for fk, group := range groups {
		path := s.chainPath(fk.ticker, fk.date)
		var existing []QuoteRecord
		if _, err := os.Stat(path); err == nil {
			if existing, err = readParquetFile[QuoteRecord](path); err != nil {
				return fmt.Errorf("read chain %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat chain %s: %w", path, err)
		}
		for _, r := range existing {
			q, err := r.Quote()
			if err != nil {
				return fmt.Errorf("read chain %s: %w", path, err)
			}
			if _, dup := batchKeys[q.Key()]; dup {
				return storage.ErrDuplicateKey
			}
		}
		records := existing
		for _, q := range group {
			records = append(records, ToRecord(q))
		}
		sortRecords(records)
		merged[path] = records
	}

	// Second pass: write.
	for path, records := range merged {
		if err := writeParquetFile(path, records); err != nil {
			return fmt.Errorf("write chain %s: %w", path, err)
		}
	}
	return nil
}

// FetchChain retrieves quotes within [start, end] ordered by date, expiration, strike, type.
func (s *OptionQuoteStore) FetchChain(_ context.Context, ticker string, start, end domain.Date) ([]*domain.OptionQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates, err := s.chainDates(ticker)
	if err != nil {
		return nil, err
	}

	var result []*domain.OptionQuote
	for _, date := range dates {
		if date.Before(start) || date.After(end) {
			continue
		}
		quotes, err := ReadQuotes(s.chainPath(ticker, date))
		if err != nil {
			return nil, fmt.Errorf("read chain %s %s: %w", ticker, date, err)
		}
		result = append(result, quotes...)
	}
	return result, nil
}

// GetChainOnDate retrieves the chain of one date.
func (s *OptionQuoteStore) GetChainOnDate(ctx context.Context, ticker string, date domain.Date) ([]*domain.OptionQuote, error) {
	return s.FetchChain(ctx, ticker, date, date)
}

// GetCoverage summarizes stored history for ticker.
func (s *OptionQuoteStore) GetCoverage(_ context.Context, ticker string) (*storage.Coverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates, err := s.chainDates(ticker)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, storage.ErrNotFound
	}

	cov := &storage.Coverage{
		Ticker:    ticker,
		FirstDate: dates[0],
		LastDate:  dates[len(dates)-1],
		Days:      len(dates),
	}
	for _, date := range dates {
		f, err := os.Open(s.chainPath(ticker, date))
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		pf, err := parquet.OpenFile(f, info.Size())
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open chain %s %s: %w", ticker, date, err)
		}
		cov.Quotes += pf.NumRows()
		f.Close()
	}
	return cov, nil
}

// chainDates lists stored dates of ticker in ascending order.
func (s *OptionQuoteStore) chainDates(ticker string) ([]domain.Date, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "options", strings.ToUpper(ticker)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dates []domain.Date
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		date, err := domain.ParseDate(strings.TrimSuffix(name, ".parquet"))
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// chainPath returns the filesystem path of one chain file.
func (s *OptionQuoteStore) chainPath(ticker string, date domain.Date) string {
	return filepath.Join(s.dataDir, "options", strings.ToUpper(ticker), date.String()+".parquet")
}

// WriteQuotes writes quotes to a single Parquet file, replacing it.
func WriteQuotes(path string, quotes []*domain.OptionQuote) error {
	records := make([]QuoteRecord, 0, len(quotes))
	for _, q := range quotes {
		records = append(records, ToRecord(q))
	}
	sortRecords(records)
	return writeParquetFile(path, records)
}

// sortRecords orders records by date, expiration, strike, type. Dates are
// YYYY-MM-DD so string order is chronological.
func sortRecords(records []QuoteRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Expiration != b.Expiration {
			return a.Expiration < b.Expiration
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Type < b.Type
	})
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
