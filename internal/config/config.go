// Package config loads service configuration from YAML, .env and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"optionforge/internal/domain"
)

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
	BackendSQLite     = "sqlite"
	BackendParquet    = "parquet"
)

// Config is the top-level configuration.
type Config struct {
	Storage    Storage    `yaml:"storage"`
	Server     Server     `yaml:"server"`
	Dispatcher Dispatcher `yaml:"dispatcher"`
	Backtest   Backtest   `yaml:"backtest"`
	Logging    Logging    `yaml:"logging"`
}

// Storage selects where quotes and runs live.
//
// Backend picks the option quote store. Strategies and runs live in
// PostgreSQL when PostgresDSN is set and in memory otherwise; ClickhouseDSN
// additionally archives daily P&L curves.
type Storage struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
	ParquetDir    string `yaml:"parquet_dir"`
	MaxConns      int32  `yaml:"max_conns"`
}

// Server holds the HTTP listener configuration.
type Server struct {
	Addr string `yaml:"addr"`
}

// Dispatcher sizes the backtest worker pool.
type Dispatcher struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// Backtest holds settings applied to definitions that leave them unset.
type Backtest struct {
	RiskFreeRate          float64 `yaml:"risk_free_rate"`
	ContractMultiplier    float64 `yaml:"contract_multiplier"`
	InitialCapital        float64 `yaml:"initial_capital"`
	CommissionPerContract float64 `yaml:"commission_per_contract"`
	SlippagePct           float64 `yaml:"slippage_pct"`
}

// Logging configures the application logger.
type Logging struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Backend:    BackendMemory,
			SQLitePath: "optionforge.db",
			ParquetDir: "data",
			MaxConns:   10,
		},
		Server: Server{Addr: ":8000"},
		Dispatcher: Dispatcher{
			Workers:   2,
			QueueSize: 64,
		},
		Backtest: Backtest{
			RiskFreeRate:       domain.DefaultRiskFreeRate,
			ContractMultiplier: domain.DefaultContractMultiplier,
			InitialCapital:     domain.DefaultInitialCapital,
		},
	}
}

// Load reads the optional YAML file at path over the defaults, then applies
// .env and environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and backend requirements.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage backend %q requires postgres_dsn", c.Storage.Backend)
		}
	case BackendClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage backend %q requires clickhouse_dsn", c.Storage.Backend)
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage backend %q requires sqlite_path", c.Storage.Backend)
		}
	case BackendParquet:
		if c.Storage.ParquetDir == "" {
			return fmt.Errorf("storage backend %q requires parquet_dir", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Dispatcher.Workers < 1 {
		return fmt.Errorf("dispatcher.workers must be >= 1, got %d", c.Dispatcher.Workers)
	}
	if c.Dispatcher.QueueSize < 0 {
		return fmt.Errorf("dispatcher.queue_size must be >= 0, got %d", c.Dispatcher.QueueSize)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if c.Backtest.ContractMultiplier <= 0 {
		return fmt.Errorf("backtest.contract_multiplier must be > 0")
	}
	if c.Backtest.SlippagePct < 0 || c.Backtest.CommissionPerContract < 0 {
		return fmt.Errorf("backtest costs must be >= 0")
	}
	return nil
}

// Settings returns the backtest defaults as strategy settings.
func (b Backtest) Settings() domain.Settings {
	rate := b.RiskFreeRate
	mult := b.ContractMultiplier
	capital := b.InitialCapital
	return domain.Settings{
		RiskFreeRate:          &rate,
		ContractMultiplier:    &mult,
		InitialCapital:        &capital,
		CommissionPerContract: b.CommissionPerContract,
		SlippagePct:           b.SlippagePct,
	}
}

// applyEnvOverrides overrides fields whose environment variable is set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("PARQUET_DIR"); v != "" {
		cfg.Storage.ParquetDir = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	var err error
	if cfg.Dispatcher.Workers, err = envInt("DISPATCHER_WORKERS", cfg.Dispatcher.Workers); err != nil {
		return err
	}
	if cfg.Dispatcher.QueueSize, err = envInt("DISPATCHER_QUEUE_SIZE", cfg.Dispatcher.QueueSize); err != nil {
		return err
	}
	if cfg.Backtest.RiskFreeRate, err = envFloat("RISK_FREE_RATE", cfg.Backtest.RiskFreeRate); err != nil {
		return err
	}
	if cfg.Backtest.InitialCapital, err = envFloat("INITIAL_CAPITAL", cfg.Backtest.InitialCapital); err != nil {
		return err
	}
	if v := os.Getenv("VERBOSE"); v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid VERBOSE: %v", err)
		}
		cfg.Logging.Verbose = verbose
	}
	return nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return f, nil
}
