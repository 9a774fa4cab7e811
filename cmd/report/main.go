package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"optionforge/internal/config"
	"optionforge/internal/reporting"
	"optionforge/internal/stores"
)

func main() {
	// Parse flags
	runID := flag.String("run-id", "", "Completed backtest run ID (required)")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	ctx := context.Background()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "Error: --run-id is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: runs are only persisted in PostgreSQL; set POSTGRES_DSN")
		os.Exit(1)
	}

	set, err := stores.Open(ctx, cfg.Storage, stores.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
		os.Exit(1)
	}
	defer set.Close()

	report, err := reporting.NewGenerator(set.Runs, set.Strategies).Generate(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	files := map[string]string{
		fmt.Sprintf("REPORT_%s.md", *runID):  reporting.RenderMarkdown(report),
		fmt.Sprintf("EQUITY_%s.csv", *runID): reporting.RenderEquityCSV(report.Result.DailyPnL),
		fmt.Sprintf("TRADES_%s.csv", *runID): reporting.RenderTradesCSV(report.Result.Trades),
	}
	fmt.Println("Backtest report generated successfully:")
	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("  - %s\n", path)
	}
}
