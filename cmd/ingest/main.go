package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"optionforge/internal/config"
	"optionforge/internal/domain"
	"optionforge/internal/fixtures"
	"optionforge/internal/ingestion"
	"optionforge/internal/observability"
	"optionforge/internal/stores"
)

func main() {
	// Parse flags
	mode := flag.String("mode", "import", "Mode: import, closes, seed, synthetic, or migrate")
	configPath := flag.String("config", "", "Path to YAML config file")
	migrate := flag.Bool("migrate", false, "Apply database migrations before ingesting")
	ticker := flag.String("ticker", "", "Ticker for files without a ticker column, and for synthetic data")
	dateStr := flag.String("date", "", "Quote date YYYY-MM-DD for files without a date column")
	startStr := flag.String("start", "", "First trading day of synthetic data (YYYY-MM-DD)")
	days := flag.Int("days", 60, "Trading days of synthetic data")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Storage.Backend == config.BackendMemory && *mode != "migrate" {
		logger.Println("Warning: memory backend selected, ingested data is discarded on exit")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping after the current day...", sig)
		cancel()
	}()

	set, err := stores.Open(ctx, cfg.Storage, stores.Options{
		Migrate: *migrate || *mode == "migrate",
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer set.Close()

	importer := ingestion.NewImporter(ingestion.ImporterOptions{
		Quotes:  set.Quotes,
		Closes:  set.Closes,
		Metrics: observability.DefaultMetrics,
		Logger:  logger,
	})

	start := time.Now()
	switch *mode {
	case "migrate":
		logger.Println("Migrations complete")

	case "import":
		if flag.NArg() == 0 {
			logger.Fatal("import mode requires one or more .csv or .parquet files")
		}
		opts := ingestion.CSVOptions{Ticker: *ticker}
		if *dateStr != "" {
			if opts.Date, err = domain.ParseDate(*dateStr); err != nil {
				logger.Fatalf("--date: %v", err)
			}
		}
		failed := 0
		for _, path := range flag.Args() {
			src, err := ingestion.SourceForPath(path, opts)
			if err != nil {
				logger.Fatalf("%s: %v", path, err)
			}
			logger.Printf("Importing %s", path)
			if _, err := importer.Import(ctx, src); err != nil {
				logger.Printf("Import of %s failed: %v", path, err)
				failed++
			}
		}
		if failed > 0 {
			logger.Fatalf("%d of %d files failed", failed, flag.NArg())
		}

	case "closes":
		if flag.NArg() != 1 {
			logger.Fatal("closes mode requires exactly one CSV file")
		}
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			logger.Fatalf("open closes file: %v", err)
		}
		closes, err := ingestion.ParseClosesCSV(f, *ticker)
		f.Close()
		if err != nil {
			logger.Fatalf("parse closes: %v", err)
		}
		if _, err := importer.ImportCloses(ctx, closes); err != nil {
			logger.Fatalf("import closes: %v", err)
		}

	case "seed":
		n, err := ingestion.SeedStrategies(ctx, set.Strategies, logger)
		if err != nil {
			logger.Fatalf("seed strategies: %v", err)
		}
		logger.Printf("%d sample strategies created", n)

	case "synthetic":
		if *ticker == "" || *startStr == "" {
			logger.Fatal("synthetic mode requires --ticker and --start")
		}
		first, err := domain.ParseDate(*startStr)
		if err != nil {
			logger.Fatalf("--start: %v", err)
		}
		params := fixtures.DefaultChainParams(strings.ToUpper(*ticker), first, *days)
		src := &syntheticSource{params: params}
		if _, err := importer.Import(ctx, src); err != nil {
			logger.Fatalf("synthetic import: %v", err)
		}
		if _, err := importer.ImportCloses(ctx, syntheticCloses(params)); err != nil {
			logger.Printf("synthetic closes: %v", err)
		}

	default:
		logger.Fatalf("Invalid mode: %s. Must be import, closes, seed, synthetic, or migrate", *mode)
	}

	logger.Printf("Done in %v", time.Since(start).Round(time.Millisecond))
}

// syntheticSource serves a generated chain through the importer.
type syntheticSource struct {
	params fixtures.ChainParams
}

func (s *syntheticSource) Format() string { return "synthetic" }

func (s *syntheticSource) Quotes(context.Context) ([]*domain.OptionQuote, error) {
	return fixtures.GenerateChain(s.params), nil
}

func syntheticCloses(p fixtures.ChainParams) []*domain.UnderlyingClose {
	var closes []*domain.UnderlyingClose
	for date, price := range fixtures.Closes(p) {
		closes = append(closes, &domain.UnderlyingClose{Ticker: p.Ticker, Date: date, Close: price})
	}
	return closes
}
