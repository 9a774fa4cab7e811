package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// BacktestRunStore is an in-memory implementation of storage.BacktestRunStore.
type BacktestRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BacktestRun // keyed by run_id
}

// NewBacktestRunStore creates a new in-memory backtest run store.
func NewBacktestRunStore() *BacktestRunStore {
	return &BacktestRunStore{data: make(map[string]*domain.BacktestRun)}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(_ context.Context, run *domain.BacktestRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := run.Clone()
	if copy.Status == "" {
		copy.Status = domain.RunStatusPending
	}
	s.data[run.RunID] = copy
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(_ context.Context, runID string) (*domain.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return run.Clone(), nil
}

// ListByStrategy retrieves runs of a strategy ordered by created_at ASC.
func (s *BacktestRunStore) ListByStrategy(_ context.Context, strategyID int64) ([]*domain.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BacktestRun
	for _, run := range s.data {
		if run.StrategyID != nil && *run.StrategyID == strategyID {
			result = append(result, run.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

// MarkRunning moves a PENDING run to RUNNING.
func (s *BacktestRunStore) MarkRunning(_ context.Context, runID string, at time.Time) error {
	return s.update(runID, func(run *domain.BacktestRun) error {
		if run.Status != domain.RunStatusPending {
			return storage.ErrInvalidTransition
		}
		run.Status = domain.RunStatusRunning
		run.StartedAt = &at
		return nil
	})
}

// UpdateProgress records progress of a RUNNING run.
func (s *BacktestRunStore) UpdateProgress(_ context.Context, runID string, pct int, message string) error {
	return s.update(runID, func(run *domain.BacktestRun) error {
		if run.Status != domain.RunStatusRunning {
			return storage.ErrInvalidTransition
		}
		run.ProgressPct = pct
		run.ProgressMessage = message
		return nil
	})
}

// Complete stores the result and moves a RUNNING run to COMPLETED.
func (s *BacktestRunStore) Complete(_ context.Context, runID string, result *domain.BacktestResult, at time.Time) error {
	if result == nil {
		return storage.ErrInvalidInput
	}
	return s.update(runID, func(run *domain.BacktestRun) error {
		if run.Status != domain.RunStatusRunning {
			return storage.ErrInvalidTransition
		}
		run.Status = domain.RunStatusCompleted
		run.ProgressPct = 100
		run.Result = result.Clone()
		run.CompletedAt = &at
		return nil
	})
}

// Fail moves a non-terminal run to FAILED.
func (s *BacktestRunStore) Fail(_ context.Context, runID string, kind, message string, at time.Time) error {
	return s.update(runID, func(run *domain.BacktestRun) error {
		if run.Status.Terminal() {
			return storage.ErrInvalidTransition
		}
		run.Status = domain.RunStatusFailed
		run.ErrorKind = kind
		run.ErrorMessage = message
		run.CompletedAt = &at
		return nil
	})
}

func (s *BacktestRunStore) update(runID string, fn func(*domain.BacktestRun) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.data[runID]
	if !exists {
		return storage.ErrNotFound
	}
	return fn(run)
}

var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)
