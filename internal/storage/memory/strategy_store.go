package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// StrategyStore is an in-memory implementation of storage.StrategyStore.
type StrategyStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.Strategy
	nextID int64
	now    func() time.Time
}

// NewStrategyStore creates a new in-memory strategy store.
func NewStrategyStore() *StrategyStore {
	return &StrategyStore{
		data:   make(map[int64]*domain.Strategy),
		nextID: 1,
		now:    time.Now,
	}
}

// Insert adds a new strategy and assigns its ID. Returns ErrDuplicateKey if the name exists.
func (s *StrategyStore) Insert(_ context.Context, st *domain.Strategy) error {
	if st == nil || st.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data {
		if existing.Name == st.Name {
			return storage.ErrDuplicateKey
		}
	}

	now := s.now().UTC()
	st.ID = s.nextID
	st.CreatedAt = now
	st.UpdatedAt = now
	s.nextID++

	copy := *st
	copy.Definition = st.Definition.Clone()
	s.data[st.ID] = &copy
	return nil
}

// GetByID retrieves a strategy by its ID. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByID(_ context.Context, id int64) (*domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *st
	copy.Definition = st.Definition.Clone()
	return &copy, nil
}

// List retrieves all strategies ordered by ID ASC.
func (s *StrategyStore) List(_ context.Context) ([]*domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Strategy, 0, len(s.data))
	for _, st := range s.data {
		copy := *st
		copy.Definition = st.Definition.Clone()
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

var _ storage.StrategyStore = (*StrategyStore)(nil)
