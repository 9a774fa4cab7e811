package memory

import (
	"context"
	"errors"
	"testing"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

func TestStrategyStore_InsertAssignsIDs(t *testing.T) {
	store := NewStrategyStore()
	ctx := context.Background()

	a := &domain.Strategy{Name: "SPY Short Straddle", Definition: domain.StrategyDefinition{UnderlyingTicker: "SPY"}}
	b := &domain.Strategy{Name: "QQQ Iron Condor", Definition: domain.StrategyDefinition{UnderlyingTicker: "QQQ"}}
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, b); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Errorf("Expected IDs 1 and 2, got %d and %d", a.ID, b.ID)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got, err := store.GetByID(ctx, 2)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Definition.UnderlyingTicker != "QQQ" {
		t.Errorf("Unexpected strategy: %+v", got)
	}

	all, _ := store.List(ctx)
	if len(all) != 2 || all[0].ID != 1 {
		t.Errorf("Unexpected list: %v", all)
	}
}

func TestStrategyStore_DuplicateName(t *testing.T) {
	store := NewStrategyStore()
	ctx := context.Background()
	_ = store.Insert(ctx, &domain.Strategy{Name: "dup"})
	if err := store.Insert(ctx, &domain.Strategy{Name: "dup"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestStrategyStore_NotFound(t *testing.T) {
	store := NewStrategyStore()
	if _, err := store.GetByID(context.Background(), 7); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
