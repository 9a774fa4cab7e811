package memory

import (
	"context"
	"sync"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

type closeKey struct {
	ticker string
	date   domain.Date
}

// UnderlyingCloseStore is an in-memory implementation of storage.UnderlyingCloseStore.
type UnderlyingCloseStore struct {
	mu   sync.RWMutex
	data map[closeKey]float64
}

// NewUnderlyingCloseStore creates a new in-memory underlying close store.
func NewUnderlyingCloseStore() *UnderlyingCloseStore {
	return &UnderlyingCloseStore{data: make(map[closeKey]float64)}
}

// InsertBulk adds closes atomically. Fails entire batch on any duplicate.
func (s *UnderlyingCloseStore) InsertBulk(_ context.Context, closes []*domain.UnderlyingClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[closeKey]struct{}, len(closes))
	for _, c := range closes {
		if c == nil || c.Ticker == "" || c.Date.IsZero() || c.Close <= 0 {
			return storage.ErrInvalidInput
		}
		key := closeKey{c.Ticker, c.Date}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[key]; exists {
			return storage.ErrDuplicateKey
		}
		batch[key] = struct{}{}
	}
	for _, c := range closes {
		s.data[closeKey{c.Ticker, c.Date}] = c.Close
	}
	return nil
}

// FetchCloses returns closes keyed by date within [start, end].
func (s *UnderlyingCloseStore) FetchCloses(_ context.Context, ticker string, start, end domain.Date) (map[domain.Date]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.Date]float64)
	for key, v := range s.data {
		if key.ticker != ticker || key.date.Before(start) || key.date.After(end) {
			continue
		}
		out[key.date] = v
	}
	return out, nil
}

var _ storage.UnderlyingCloseStore = (*UnderlyingCloseStore)(nil)
