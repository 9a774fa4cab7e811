package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

func TestDailyPnLStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDailyPnLStore(conn)
	ctx := context.Background()
	d := domain.NewDate(2024, 1, 2)

	points := []domain.PnLPoint{
		{Date: d.AddDays(1), PnL: -35.5, Equity: 99964.5, ModeledMarks: 2},
		{Date: d, PnL: 0, Equity: 100000},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", points))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, d, got[0].Date)
	assert.Equal(t, -35.5, got[1].PnL)
	assert.Equal(t, 2, got[1].ModeledMarks)

	// A run's curve is written once
	err = store.InsertBulk(ctx, "run-1", points[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, "run-2", []domain.PnLPoint{{Date: d}, {Date: d}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	empty, err := store.GetByRunID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
