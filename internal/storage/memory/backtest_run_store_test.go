package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

func makeRun(id string, strategyID int64, created time.Time) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:      id,
		StrategyID: &strategyID,
		Definition: domain.StrategyDefinition{UnderlyingTicker: "SPY"},
		StartDate:  domain.NewDate(2024, 1, 1),
		EndDate:    domain.NewDate(2024, 6, 30),
		Status:     domain.RunStatusPending,
		CreatedAt:  created,
	}
}

func TestBacktestRunStore_Lifecycle(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Insert(ctx, makeRun("run1", 1, now)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.MarkRunning(ctx, "run1", now); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := store.UpdateProgress(ctx, "run1", 42, "Simulating trades..."); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	result := &domain.BacktestResult{DailyPnL: []domain.PnLPoint{{Date: domain.NewDate(2024, 1, 2), PnL: 10, Equity: 100010}}}
	if err := store.Complete(ctx, "run1", result, now.Add(time.Minute)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.RunStatusCompleted || got.ProgressPct != 100 {
		t.Errorf("Expected COMPLETED at 100%%, got %s at %d", got.Status, got.ProgressPct)
	}
	if got.Result == nil || len(got.Result.DailyPnL) != 1 {
		t.Fatalf("Result not stored: %+v", got.Result)
	}

	// stored result is independent of the caller's copy
	result.DailyPnL[0].PnL = -1
	again, _ := store.GetByID(ctx, "run1")
	if again.Result.DailyPnL[0].PnL != 10 {
		t.Errorf("Stored result was mutated")
	}

	if err := store.Fail(ctx, "run1", "InternalError", "late failure", now); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition failing a completed run, got %v", err)
	}
}

func TestBacktestRunStore_FailFromPending(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()
	now := time.Now()

	_ = store.Insert(ctx, makeRun("run1", 1, now))
	if err := store.Fail(ctx, "run1", "InvalidStrategyError", "invalid strategy: strategy has no legs", now); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	got, _ := store.GetByID(ctx, "run1")
	if got.Status != domain.RunStatusFailed || got.ErrorKind != "InvalidStrategyError" {
		t.Errorf("Unexpected run: %+v", got)
	}
	if err := store.UpdateProgress(ctx, "run1", 50, "x"); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestBacktestRunStore_CompleteRequiresRunning(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()
	_ = store.Insert(ctx, makeRun("run1", 1, time.Now()))

	err := store.Complete(ctx, "run1", &domain.BacktestResult{}, time.Now())
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestBacktestRunStore_NotFoundAndDuplicate(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.MarkRunning(ctx, "missing", time.Now()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_ = store.Insert(ctx, makeRun("run1", 1, time.Now()))
	if err := store.Insert(ctx, makeRun("run1", 1, time.Now())); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestBacktestRunStore_ListByStrategy(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	_ = store.Insert(ctx, makeRun("b", 1, base.Add(2*time.Hour)))
	_ = store.Insert(ctx, makeRun("a", 1, base.Add(time.Hour)))
	_ = store.Insert(ctx, makeRun("c", 2, base))

	runs, err := store.ListByStrategy(ctx, 1)
	if err != nil {
		t.Fatalf("ListByStrategy failed: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "a" || runs[1].RunID != "b" {
		t.Errorf("Unexpected runs order: %v", runs)
	}
}
