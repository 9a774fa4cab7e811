package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
	"optionforge/internal/storage/migrations"
	"optionforge/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "quotes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.RunSQLiteMigrations(ctx, db.DB))
	return db
}

func ptr[T any](v T) *T {
	return &v
}

func makeQuote(date string, strike float64, typ domain.OptionType) *domain.OptionQuote {
	return &domain.OptionQuote{
		Date:              domain.MustParseDate(date),
		UnderlyingTicker:  "SPY",
		Expiration:        domain.MustParseDate("2024-02-16"),
		Strike:            strike,
		Type:              typ,
		Bid:               1.10,
		Ask:               1.20,
		Volume:            250,
		OpenInterest:      1200,
		ImpliedVolatility: 0.18,
		Delta:             ptr(-0.3),
	}
}

func TestOptionQuoteStore_InsertAndFetch(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewOptionQuoteStore(db)
	ctx := context.Background()

	quotes := []*domain.OptionQuote{
		makeQuote("2024-01-03", 470, domain.OptionTypePut),
		makeQuote("2024-01-02", 475, domain.OptionTypeCall),
		makeQuote("2024-01-02", 470, domain.OptionTypePut),
	}
	quotes[1].Delta = nil
	require.NoError(t, store.InsertBulk(ctx, quotes))

	got, err := store.FetchChain(ctx, "SPY", domain.MustParseDate("2024-01-01"), domain.MustParseDate("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "2024-01-02", got[0].Date.String())
	assert.Equal(t, 470.0, got[0].Strike)
	assert.Equal(t, 475.0, got[1].Strike)
	assert.Nil(t, got[1].Delta)
	require.NotNil(t, got[0].Delta)
	assert.Equal(t, -0.3, *got[0].Delta)
	assert.Equal(t, "2024-01-03", got[2].Date.String())

	day, err := store.GetChainOnDate(ctx, "SPY", domain.MustParseDate("2024-01-03"))
	require.NoError(t, err)
	assert.Len(t, day, 1)
}

func TestOptionQuoteStore_DuplicateRollsBack(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewOptionQuoteStore(db)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.OptionQuote{makeQuote("2024-01-02", 470, domain.OptionTypePut)}))

	err := store.InsertBulk(ctx, []*domain.OptionQuote{
		makeQuote("2024-01-02", 480, domain.OptionTypePut),
		makeQuote("2024-01-02", 470, domain.OptionTypePut),
	})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "got %v", err)

	got, err := store.GetChainOnDate(ctx, "SPY", domain.MustParseDate("2024-01-02"))
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch must not leave partial rows")
}

func TestOptionQuoteStore_Coverage(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewOptionQuoteStore(db)
	ctx := context.Background()

	_, err := store.GetCoverage(ctx, "SPY")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, store.InsertBulk(ctx, []*domain.OptionQuote{
		makeQuote("2024-01-02", 470, domain.OptionTypePut),
		makeQuote("2024-01-02", 475, domain.OptionTypePut),
		makeQuote("2024-01-05", 470, domain.OptionTypePut),
	}))

	cov, err := store.GetCoverage(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", cov.FirstDate.String())
	assert.Equal(t, "2024-01-05", cov.LastDate.String())
	assert.Equal(t, 2, cov.Days)
	assert.Equal(t, int64(3), cov.Quotes)
}

func TestOptionQuoteStore_InvalidInput(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewOptionQuoteStore(db)

	bad := makeQuote("2024-01-02", 470, "straddle")
	err := store.InsertBulk(context.Background(), []*domain.OptionQuote{bad})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput), "got %v", err)
}

func TestUnderlyingCloseStore(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewUnderlyingCloseStore(db)
	ctx := context.Background()

	closes := []*domain.UnderlyingClose{
		{Ticker: "SPY", Date: domain.MustParseDate("2024-01-02"), Close: 472.65},
		{Ticker: "SPY", Date: domain.MustParseDate("2024-01-03"), Close: 468.79},
		{Ticker: "QQQ", Date: domain.MustParseDate("2024-01-02"), Close: 402.10},
	}
	require.NoError(t, store.InsertBulk(ctx, closes))

	got, err := store.FetchCloses(ctx, "SPY", domain.MustParseDate("2024-01-01"), domain.MustParseDate("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, map[domain.Date]float64{domain.MustParseDate("2024-01-02"): 472.65}, got)

	err = store.InsertBulk(ctx, closes[:1])
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "got %v", err)
}
