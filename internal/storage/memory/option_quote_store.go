package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// OptionQuoteStore is an in-memory implementation of storage.OptionQuoteStore.
type OptionQuoteStore struct {
	mu   sync.RWMutex
	data map[domain.QuoteKey]*domain.OptionQuote
	days map[string]map[domain.Date][]domain.QuoteKey // ticker -> date -> keys
}

// NewOptionQuoteStore creates a new in-memory option quote store.
func NewOptionQuoteStore() *OptionQuoteStore {
	return &OptionQuoteStore{
		data: make(map[domain.QuoteKey]*domain.OptionQuote),
		days: make(map[string]map[domain.Date][]domain.QuoteKey),
	}
}

// InsertBulk adds multiple quotes atomically. Fails entire batch on any duplicate.
func (s *OptionQuoteStore) InsertBulk(_ context.Context, quotes []*domain.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[domain.QuoteKey]struct{}, len(quotes))

	// First pass: validate and check duplicates (existing + intra-batch)
	for _, q := range quotes {
		if q == nil {
			return storage.ErrInvalidInput
		}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		key := q.Key()
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, q := range quotes {
		key := q.Key()
		s.data[key] = q.Clone()
		byDate, ok := s.days[q.UnderlyingTicker]
		if !ok {
			byDate = make(map[domain.Date][]domain.QuoteKey)
			s.days[q.UnderlyingTicker] = byDate
		}
		byDate[q.Date] = append(byDate[q.Date], key)
	}
	return nil
}

// FetchChain retrieves quotes within [start, end], ordered by date, expiration, strike, type.
func (s *OptionQuoteStore) FetchChain(_ context.Context, ticker string, start, end domain.Date) ([]*domain.OptionQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OptionQuote
	for date, keys := range s.days[ticker] {
		if date.Before(start) || date.After(end) {
			continue
		}
		for _, key := range keys {
			result = append(result, s.data[key].Clone())
		}
	}
	sortQuotes(result)
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

	byDate := s.days[ticker]
	if len(byDate) == 0 {
		return nil, storage.ErrNotFound
	}
	cov := &storage.Coverage{Ticker: ticker, Days: len(byDate)}
	for date, keys := range byDate {
		if cov.FirstDate.IsZero() || date.Before(cov.FirstDate) {
			cov.FirstDate = date
		}
		if date.After(cov.LastDate) {
			cov.LastDate = date
		}
		cov.Quotes += int64(len(keys))
	}
	return cov, nil
}

func sortQuotes(quotes []*domain.OptionQuote) {
	sort.Slice(quotes, func(i, j int) bool {
		a, b := quotes[i], quotes[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if c := a.Expiration.Compare(b.Expiration); c != 0 {
			return c < 0
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Type < b.Type
	})
}

var _ storage.OptionQuoteStore = (*OptionQuoteStore)(nil)
