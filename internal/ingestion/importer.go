package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"optionforge/internal/domain"
	"optionforge/internal/observability"
	"optionforge/internal/storage"
)

// Importer loads option chains into a quote store one trading day at a time.
type Importer struct {
	quotes  storage.OptionQuoteStore
	closes  storage.UnderlyingCloseStore
	metrics *observability.Metrics
	logger  *log.Logger
}

// ImporterOptions contains configuration for creating an Importer.
type ImporterOptions struct {
	Quotes  storage.OptionQuoteStore
	Closes  storage.UnderlyingCloseStore // optional
	Metrics *observability.Metrics
	Logger  *log.Logger
}

// NewImporter creates a new chain importer.
func NewImporter(opts ImporterOptions) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = observability.DefaultMetrics
	}
	return &Importer{
		quotes:  opts.Quotes,
		closes:  opts.Closes,
		metrics: m,
		logger:  logger,
	}
}

// ImportResult contains statistics from an import.
type ImportResult struct {
	QuotesImported int
	DaysImported   int
	DaysSkipped    int // day already stored
	Errors         int
	Duration       time.Duration
}

// Import reads src and stores its quotes. Each (ticker, date) chain is one
// atomic batch. A day that already exists is skipped, so re-running an
// import over a partially loaded file only adds the missing days.
func (im *Importer) Import(ctx context.Context, src QuoteSource) (*ImportResult, error) {
	start := time.Now()
	result := &ImportResult{}

	quotes, err := src.Quotes(ctx)
	if err != nil {
		im.metrics.RecordImport(src.Format(), 0, err)
		return result, fmt.Errorf("read %s source: %w", src.Format(), err)
	}
	im.logger.Printf("Read %d %s quotes", len(quotes), src.Format())

	for _, day := range groupByDay(quotes) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		err := im.quotes.InsertBulk(ctx, day.quotes)
		switch {
		case err == nil:
			result.QuotesImported += len(day.quotes)
			result.DaysImported++
		case errors.Is(err, storage.ErrDuplicateKey):
			result.DaysSkipped++
			im.logger.Printf("Data for %s %s already exists. Skipping.", day.ticker, day.date)
		default:
			result.Errors++
			im.logger.Printf("Error storing %s %s: %v", day.ticker, day.date, err)
		}
	}

	result.Duration = time.Since(start)
	var importErr error
	if result.Errors > 0 {
		importErr = fmt.Errorf("%d days failed", result.Errors)
	}
	im.metrics.RecordImport(src.Format(), result.QuotesImported, importErr)
	im.logger.Printf("Import complete: %d quotes over %d days, %d days skipped, %d errors in %v",
		result.QuotesImported, result.DaysImported, result.DaysSkipped, result.Errors, result.Duration)
	return result, importErr
}

// ImportCloses stores underlying closes, skipping the batch when it is
// already present.
func (im *Importer) ImportCloses(ctx context.Context, closes []*domain.UnderlyingClose) (int, error) {
	if im.closes == nil {
		return 0, fmt.Errorf("no underlying close store configured")
	}
	if err := im.closes.InsertBulk(ctx, closes); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			im.logger.Printf("Underlying closes already stored. Skipping.")
			return 0, nil
		}
		return 0, fmt.Errorf("store closes: %w", err)
	}
	im.logger.Printf("Stored %d underlying closes", len(closes))
	return len(closes), nil
}

type dayChain struct {
	ticker string
	date   domain.Date
	quotes []*domain.OptionQuote
}

// groupByDay splits quotes into per-day chains ordered by ticker then date.
func groupByDay(quotes []*domain.OptionQuote) []*dayChain {
	type key struct {
		ticker string
		date   domain.Date
	}
	byKey := make(map[key]*dayChain)
	for _, q := range quotes {
		k := key{q.UnderlyingTicker, q.Date}
		d, ok := byKey[k]
		if !ok {
			d = &dayChain{ticker: k.ticker, date: k.date}
			byKey[k] = d
		}
		d.quotes = append(d.quotes, q)
	}

	days := make([]*dayChain, 0, len(byKey))
	for _, d := range byKey {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		if days[i].ticker != days[j].ticker {
			return days[i].ticker < days[j].ticker
		}
		return days[i].date.Before(days[j].date)
	})
	return days
}
