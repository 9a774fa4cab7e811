package memory

import (
	"context"
	"sort"
	"sync"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// DailyPnLStore is an in-memory implementation of storage.DailyPnLStore.
type DailyPnLStore struct {
	mu   sync.RWMutex
	data map[string]map[domain.Date]domain.PnLPoint // run_id -> date -> point
}

// NewDailyPnLStore creates a new in-memory daily P&L store.
func NewDailyPnLStore() *DailyPnLStore {
	return &DailyPnLStore{data: make(map[string]map[domain.Date]domain.PnLPoint)}
}

// InsertBulk adds the curve of a run. Fails entire batch on any duplicate date.
func (s *DailyPnLStore) InsertBulk(_ context.Context, runID string, points []domain.PnLPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]
	batch := make(map[domain.Date]struct{}, len(points))
	for _, p := range points {
		if _, dup := existing[p.Date]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := batch[p.Date]; dup {
			return storage.ErrDuplicateKey
		}
		batch[p.Date] = struct{}{}
	}

	if existing == nil {
		existing = make(map[domain.Date]domain.PnLPoint, len(points))
		s.data[runID] = existing
	}
	for _, p := range points {
		existing[p.Date] = p
	}
	return nil
}

// GetByRunID retrieves the curve of a run ordered by date ASC.
func (s *DailyPnLStore) GetByRunID(_ context.Context, runID string) ([]domain.PnLPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PnLPoint, 0, len(s.data[runID]))
	for _, p := range s.data[runID] {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

var _ storage.DailyPnLStore = (*DailyPnLStore)(nil)
