package ingestion

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"optionforge/internal/domain"
	"optionforge/internal/fixtures"
	"optionforge/internal/observability"
	"optionforge/internal/storage/memory"
	"optionforge/internal/storage/parquet"
)

var quietLogger = log.New(io.Discard, "", 0)

type sliceSource []*domain.OptionQuote

func (s sliceSource) Format() string { return "test" }

func (s sliceSource) Quotes(context.Context) ([]*domain.OptionQuote, error) {
	return s, nil
}

func newTestImporter(t *testing.T) (*Importer, *memory.OptionQuoteStore, *observability.Metrics) {
	t.Helper()
	store := memory.NewOptionQuoteStore()
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	im := NewImporter(ImporterOptions{
		Quotes:  store,
		Closes:  memory.NewUnderlyingCloseStore(),
		Metrics: m,
		Logger:  quietLogger,
	})
	return im, store, m
}

func TestImport_SkipsExistingDays(t *testing.T) {
	ctx := context.Background()
	im, store, m := newTestImporter(t)

	params := fixtures.DefaultChainParams("SPY", domain.MustParseDate("2024-01-02"), 5)
	chain := fixtures.GenerateChain(params)
	dates := fixtures.TradingDates(params)

	// preload the first day
	var firstDay []*domain.OptionQuote
	for _, q := range chain {
		if q.Date.Equal(dates[0]) {
			firstDay = append(firstDay, q.Clone())
		}
	}
	if err := store.InsertBulk(ctx, firstDay); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := im.Import(ctx, sliceSource(chain))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.DaysSkipped != 1 {
		t.Errorf("Expected 1 skipped day, got %d", result.DaysSkipped)
	}
	if result.DaysImported != len(dates)-1 {
		t.Errorf("Expected %d imported days, got %d", len(dates)-1, result.DaysImported)
	}
	if result.QuotesImported != len(chain)-len(firstDay) {
		t.Errorf("Expected %d quotes, got %d", len(chain)-len(firstDay), result.QuotesImported)
	}

	stored, err := store.FetchChain(ctx, "SPY", dates[0], dates[len(dates)-1])
	if err != nil {
		t.Fatalf("FetchChain failed: %v", err)
	}
	if len(stored) != len(chain) {
		t.Errorf("Expected %d stored quotes, got %d", len(chain), len(stored))
	}
	if got := testutil.ToFloat64(m.QuotesImported.WithLabelValues("test")); got != float64(result.QuotesImported) {
		t.Errorf("Expected imported counter %d, got %v", result.QuotesImported, got)
	}
}

func TestImport_CountsInvalidDays(t *testing.T) {
	ctx := context.Background()
	im, _, m := newTestImporter(t)

	good := &domain.OptionQuote{
		UnderlyingTicker: "SPY", Date: domain.MustParseDate("2024-01-02"),
		Expiration: domain.MustParseDate("2024-02-16"), Strike: 470, Type: domain.OptionTypeCall,
	}
	bad := &domain.OptionQuote{
		UnderlyingTicker: "SPY", Date: domain.MustParseDate("2024-01-03"),
		Expiration: domain.MustParseDate("2024-02-16"), Strike: -1, Type: domain.OptionTypeCall,
	}

	result, err := im.Import(ctx, sliceSource{good, bad})
	if err == nil {
		t.Fatal("Expected error for invalid day")
	}
	if result.DaysImported != 1 || result.Errors != 1 {
		t.Errorf("Expected 1 imported and 1 failed day, got %d and %d", result.DaysImported, result.Errors)
	}
	if got := testutil.ToFloat64(m.ImportErrors.WithLabelValues("test")); got != 1 {
		t.Errorf("Expected 1 import error, got %v", got)
	}
}

func TestImport_ParquetFile(t *testing.T) {
	ctx := context.Background()
	im, store, _ := newTestImporter(t)

	params := fixtures.DefaultChainParams("QQQ", domain.MustParseDate("2024-03-04"), 2)
	chain := fixtures.GenerateChain(params)
	path := filepath.Join(t.TempDir(), "qqq.parquet")
	if err := parquet.WriteQuotes(path, chain); err != nil {
		t.Fatalf("WriteQuotes failed: %v", err)
	}

	src, err := SourceForPath(path, CSVOptions{})
	if err != nil {
		t.Fatalf("SourceForPath failed: %v", err)
	}
	result, err := im.Import(ctx, src)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.QuotesImported != len(chain) || result.DaysImported != 2 {
		t.Errorf("Expected %d quotes over 2 days, got %d over %d", len(chain), result.QuotesImported, result.DaysImported)
	}

	cov, err := store.GetCoverage(ctx, "QQQ")
	if err != nil {
		t.Fatalf("GetCoverage failed: %v", err)
	}
	if cov.Days != 2 {
		t.Errorf("Expected 2 covered days, got %d", cov.Days)
	}
}

func TestImport_CSVFile(t *testing.T) {
	ctx := context.Background()
	im, _, _ := newTestImporter(t)

	path := filepath.Join(t.TempDir(), "chain.csv")
	data := "date,ticker,expiration,strike,type,bid,ask\n" +
		"2024-01-02,SPY,2024-02-16,470,call,5.1,5.3\n" +
		"2024-01-03,SPY,2024-02-16,470,call,5.4,5.6\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	result, err := im.Import(ctx, &CSVSource{Path: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.QuotesImported != 2 || result.DaysImported != 2 {
		t.Errorf("Expected 2 quotes over 2 days, got %+v", result)
	}

	if _, err := im.Import(ctx, &CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")}); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestImportCloses(t *testing.T) {
	ctx := context.Background()
	im, _, _ := newTestImporter(t)

	closes := []*domain.UnderlyingClose{
		{Ticker: "SPY", Date: domain.MustParseDate("2024-01-02"), Close: 472.65},
		{Ticker: "SPY", Date: domain.MustParseDate("2024-01-03"), Close: 468.79},
	}
	n, err := im.ImportCloses(ctx, closes)
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 closes stored, got %d, %v", n, err)
	}
	n, err = im.ImportCloses(ctx, closes)
	if err != nil || n != 0 {
		t.Errorf("Expected duplicate batch to be skipped, got %d, %v", n, err)
	}

	noCloses := NewImporter(ImporterOptions{Quotes: memory.NewOptionQuoteStore(), Logger: quietLogger})
	if _, err := noCloses.ImportCloses(ctx, closes); err == nil {
		t.Error("Expected error without a close store")
	}
}
