package config

import (
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"STORAGE_BACKEND", "POSTGRES_DSN", "CLICKHOUSE_DSN", "SQLITE_PATH", "PARQUET_DIR",
	"SERVER_ADDR", "DISPATCHER_WORKERS", "DISPATCHER_QUEUE_SIZE", "RISK_FREE_RATE",
	"INITIAL_CAPITAL", "VERBOSE",
}

// clearEnv unsets every override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	// Load picks up .env from the working directory
	t.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "optionforge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendMemory)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("Server.Addr = %q, want :8000", cfg.Server.Addr)
	}
	if cfg.Dispatcher.Workers != 2 {
		t.Errorf("Dispatcher.Workers = %d, want 2", cfg.Dispatcher.Workers)
	}
	if cfg.Backtest.RiskFreeRate != 0.02 {
		t.Errorf("Backtest.RiskFreeRate = %v, want 0.02", cfg.Backtest.RiskFreeRate)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  backend: sqlite
  sqlite_path: /tmp/optionforge/quotes.db
server:
  addr: "127.0.0.1:9000"
dispatcher:
  workers: 4
  queue_size: 10
backtest:
  commission_per_contract: 0.65
  slippage_pct: 0.01
logging:
  verbose: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.SQLitePath != "/tmp/optionforge/quotes.db" {
		t.Errorf("Storage.SQLitePath = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Dispatcher.Workers != 4 || cfg.Dispatcher.QueueSize != 10 {
		t.Errorf("Dispatcher = %+v", cfg.Dispatcher)
	}
	if !cfg.Logging.Verbose {
		t.Error("Logging.Verbose = false, want true")
	}
	// unset keys keep their defaults
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("Backtest.InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}

	s := cfg.Backtest.Settings()
	if s.CommissionPerContract != 0.65 || s.SlippagePct != 0.01 {
		t.Errorf("Settings costs = %v/%v", s.CommissionPerContract, s.SlippagePct)
	}
	if s.Capital() != 100000 || s.Multiplier() != 100 {
		t.Errorf("Settings capital/multiplier = %v/%v", s.Capital(), s.Multiplier())
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  addr: \":7000\"\n")

	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/optionforge")
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("DISPATCHER_WORKERS", "8")
	t.Setenv("VERBOSE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.Backend != BackendPostgres {
		t.Errorf("Storage.Backend = %q, want postgres", cfg.Storage.Backend)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q, want :9999", cfg.Server.Addr)
	}
	if cfg.Dispatcher.Workers != 8 {
		t.Errorf("Dispatcher.Workers = %d, want 8", cfg.Dispatcher.Workers)
	}
	if !cfg.Logging.Verbose {
		t.Error("Logging.Verbose = false, want true")
	}
}

func TestDotEnv(t *testing.T) {
	clearEnv(t)
	if err := os.WriteFile(".env", []byte("SERVER_ADDR=:8123\n"), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	// godotenv sets the variable process-wide; restore it after the test
	t.Setenv("SERVER_ADDR", "")
	os.Unsetenv("SERVER_ADDR")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Server.Addr != ":8123" {
		t.Errorf("Server.Addr = %q, want :8123", cfg.Server.Addr)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "unknown backend", yaml: "storage:\n  backend: mongo\n"},
		{name: "postgres without dsn", yaml: "storage:\n  backend: postgres\n"},
		{name: "clickhouse without dsn", yaml: "storage:\n  backend: clickhouse\n"},
		{name: "zero workers", yaml: "dispatcher:\n  workers: 0\n"},
		{name: "negative slippage", yaml: "backtest:\n  slippage_pct: -0.1\n"},
		{name: "bad yaml", yaml: "storage: [\n"},
		{name: "bad env int", yaml: "", env: map[string]string{"DISPATCHER_WORKERS": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("Load() returned nil error")
			}
		})
	}
}
