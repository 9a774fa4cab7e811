package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"optionforge/internal/backtest"
	"optionforge/internal/config"
	"optionforge/internal/dispatcher"
	"optionforge/internal/domain"
	"optionforge/internal/fixtures"
	"optionforge/internal/reporting"
	"optionforge/internal/storage"
	"optionforge/internal/stores"
	"optionforge/internal/strategy"
)

func main() {
	// Strategy
	strategyFile := flag.String("strategy-file", "", "Strategy definition file (.json, .yaml)")
	strategyID := flag.Int64("strategy-id", 0, "Stored strategy ID (alternative to --strategy-file)")
	startStr := flag.String("start", "", "Start date YYYY-MM-DD (required)")
	endStr := flag.String("end", "", "End date YYYY-MM-DD (required)")

	// Storage
	configPath := flag.String("config", "", "Path to YAML config file")
	synthetic := flag.Int("synthetic", 0, "Generate N trading days of synthetic chain in memory instead of reading storage")

	// Output
	format := flag.String("format", "markdown", "Output format: markdown, json, csv")
	outputPath := flag.String("output", "", "Write output to file instead of stdout")
	persistResult := flag.Bool("persist", false, "Persist the run through the dispatcher")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	// Validate required flags
	if (*strategyFile == "") == (*strategyID == 0) {
		logger.Fatal("exactly one of --strategy-file or --strategy-id is required")
	}
	start, err := domain.ParseDate(*startStr)
	if err != nil {
		logger.Fatalf("--start: %v", err)
	}
	end, err := domain.ParseDate(*endStr)
	if err != nil {
		logger.Fatalf("--end: %v", err)
	}
	*format = strings.ToLower(*format)
	if *format != "markdown" && *format != "json" && *format != "csv" {
		logger.Fatalf("Invalid format: %s. Must be markdown, json, or csv", *format)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *synthetic > 0 {
		cfg.Storage = config.Storage{Backend: config.BackendMemory}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	set, err := stores.Open(ctx, cfg.Storage, stores.Options{Logger: logger})
	if err != nil {
		logger.Fatalf("open stores: %v", err)
	}
	defer set.Close()

	// Resolve strategy
	var st *domain.Strategy
	if *strategyFile != "" {
		st, err = strategy.LoadFile(*strategyFile)
	} else {
		st, err = set.Strategies.GetByID(ctx, *strategyID)
	}
	if err != nil {
		logger.Fatalf("load strategy: %v", err)
	}
	def := st.Definition
	def.Settings = def.Settings.WithDefaults(cfg.Backtest.Settings())

	if *synthetic > 0 {
		params := fixtures.DefaultChainParams(def.UnderlyingTicker, start, *synthetic)
		if err := set.Quotes.InsertBulk(ctx, fixtures.GenerateChain(params)); err != nil {
			logger.Fatalf("generate synthetic chain: %v", err)
		}
		logger.Printf("Generated %d synthetic trading days for %s", *synthetic, def.UnderlyingTicker)
	}

	engine := backtest.NewEngine(backtest.Options{
		Provider:   set.Quotes,
		Underlying: set.Closes,
		Logger:     logger,
	})

	logger.Printf("Running backtest: strategy=%q ticker=%s %s..%s", st.Name, def.UnderlyingTicker, start, end)

	var result *domain.BacktestResult
	var runID string
	if *persistResult {
		result, runID, err = runPersisted(ctx, engine, set, st, cfg.Backtest.Settings(), start, end, logger)
	} else {
		result, err = engine.Run(ctx, backtest.Request{
			Strategy: def,
			Start:    start,
			End:      end,
			Progress: func(pct int, msg string) { logger.Printf("%3d%% %s", pct, msg) },
		})
	}
	if err != nil {
		logger.Fatalf("backtest failed (%s): %v", backtest.ErrorKind(err), err)
	}

	// Output result
	out := io.Writer(os.Stdout)
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			logger.Fatalf("create output: %v", err)
		}
		defer f.Close()
		out = f
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logger.Fatalf("encode result: %v", err)
		}
	case "csv":
		fmt.Fprint(out, reporting.RenderEquityCSV(result.DailyPnL))
	default:
		report := reporting.Build(st.Name, start, end, result, time.Now().UTC())
		report.RunID = runID
		fmt.Fprint(out, reporting.RenderMarkdown(report))
	}
}

// runPersisted stores the strategy if needed and runs through a
// single-worker dispatcher so the run and its result are recorded.
func runPersisted(
	ctx context.Context,
	engine *backtest.Engine,
	set *stores.Set,
	st *domain.Strategy,
	defaults domain.Settings,
	start, end domain.Date,
	logger *log.Logger,
) (*domain.BacktestResult, string, error) {
	disp := dispatcher.New(dispatcher.Options{
		Runner:     engine,
		Runs:       set.Runs,
		Strategies: set.Strategies,
		Curves:     set.Curves,
		Workers:    1,
		QueueSize:  1,
		Defaults:   defaults,
		Logger:     logger,
	})
	runCtx, stop := context.WithCancel(ctx)
	defer func() {
		stop()
		disp.Wait()
	}()
	disp.Start(runCtx)

	req := dispatcher.SubmitRequest{Start: start, End: end}
	if st.ID == 0 {
		err := set.Strategies.Insert(ctx, st)
		switch {
		case err == nil:
			logger.Printf("Stored strategy %q as id %d", st.Name, st.ID)
		case errors.Is(err, storage.ErrDuplicateKey):
			logger.Printf("Strategy %q already stored under another definition, running inline", st.Name)
		default:
			return nil, "", fmt.Errorf("store strategy: %w", err)
		}
	}
	if st.ID != 0 {
		req.StrategyID = &st.ID
	} else {
		req.Definition = &st.Definition
	}

	run, err := disp.Submit(ctx, req)
	if err != nil {
		return nil, "", err
	}
	logger.Printf("Submitted run %s", run.RunID)

	// subscribe before checking the status so the terminal update cannot be missed
	updates, cancel := disp.Subscribe(run.RunID)
	defer cancel()
	stored, err := set.Runs.GetByID(ctx, run.RunID)
	if err != nil {
		return nil, run.RunID, err
	}
	if !stored.Status.Terminal() {
		for p := range updates {
			if p.Terminal() {
				break
			}
			logger.Printf("%3d%% %s", p.Pct, p.Message)
		}
		if stored, err = set.Runs.GetByID(context.WithoutCancel(ctx), run.RunID); err != nil {
			return nil, run.RunID, err
		}
	}

	if stored.Status != domain.RunStatusCompleted {
		return nil, run.RunID, fmt.Errorf("run %s %s: %s", run.RunID, stored.ErrorKind, stored.ErrorMessage)
	}
	return stored.Result, run.RunID, nil
}
