// Package stores opens the storage backends selected by configuration.
package stores

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"optionforge/internal/config"
	"optionforge/internal/storage"
	chstore "optionforge/internal/storage/clickhouse"
	"optionforge/internal/storage/memory"
	"optionforge/internal/storage/migrations"
	parquetstore "optionforge/internal/storage/parquet"
	pgstore "optionforge/internal/storage/postgres"
	sqlitestore "optionforge/internal/storage/sqlite"
)

// Set holds every store the application uses.
type Set struct {
	Quotes     storage.OptionQuoteStore
	Closes     storage.UnderlyingCloseStore
	Strategies storage.StrategyStore
	Runs       storage.BacktestRunStore
	Curves     storage.DailyPnLStore // nil when no analytics store is configured

	closers []func() error
}

// Close releases all open connections.
func (s *Set) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// Options controls Open.
type Options struct {
	Migrate bool // apply embedded migrations before use
	Logger  *log.Logger
}

// Open connects the configured backends. Quotes and closes follow
// cfg.Backend. Strategies and runs live in PostgreSQL whenever a DSN is
// set, in memory otherwise. Daily P&L curves go to ClickHouse when its DSN
// is set.
func Open(ctx context.Context, cfg config.Storage, opts Options) (*Set, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	set := &Set{}

	fail := func(err error) (*Set, error) {
		set.Close()
		return nil, err
	}

	var pool *pgstore.Pool
	if cfg.PostgresDSN != "" {
		var err error
		pool, err = pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.MaxConns)
		if err != nil {
			return fail(err)
		}
		set.closers = append(set.closers, func() error { pool.Close(); return nil })
		if opts.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return fail(fmt.Errorf("postgres migrations: %w", err))
			}
			logger.Println("PostgreSQL migrations applied")
		}
		set.Strategies = pgstore.NewStrategyStore(pool)
		set.Runs = pgstore.NewBacktestRunStore(pool)
	} else {
		set.Strategies = memory.NewStrategyStore()
		set.Runs = memory.NewBacktestRunStore()
	}

	var ch *chstore.Conn
	if cfg.ClickhouseDSN != "" {
		var err error
		if opts.Migrate {
			ch, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
			if err == nil {
				logger.Println("ClickHouse migrations applied")
			}
		} else {
			ch, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			return fail(fmt.Errorf("clickhouse: %w", err))
		}
		set.closers = append(set.closers, ch.Close)
		set.Curves = chstore.NewDailyPnLStore(ch)
	}

	switch cfg.Backend {
	case config.BackendMemory:
		set.Quotes = memory.NewOptionQuoteStore()
		set.Closes = memory.NewUnderlyingCloseStore()

	case config.BackendPostgres:
		set.Quotes = pgstore.NewOptionQuoteStore(pool)
		set.Closes = pgstore.NewUnderlyingCloseStore(pool)

	case config.BackendClickhouse:
		set.Quotes = chstore.NewOptionQuoteStore(ch)
		set.Closes = closesFallback(pool)

	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fail(fmt.Errorf("create sqlite dir: %w", err))
			}
		}
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return fail(err)
		}
		set.closers = append(set.closers, db.Close)
		// the schema is tiny and idempotent, so a local file is always migrated
		if err := migrations.RunSQLiteMigrations(ctx, db.DB); err != nil {
			return fail(fmt.Errorf("sqlite migrations: %w", err))
		}
		set.Quotes = sqlitestore.NewOptionQuoteStore(db)
		set.Closes = sqlitestore.NewUnderlyingCloseStore(db)

	case config.BackendParquet:
		if err := os.MkdirAll(cfg.ParquetDir, 0o755); err != nil {
			return fail(fmt.Errorf("create parquet dir: %w", err))
		}
		set.Quotes = parquetstore.NewOptionQuoteStore(cfg.ParquetDir)
		set.Closes = closesFallback(pool)

	default:
		return fail(fmt.Errorf("unknown storage backend %q", cfg.Backend))
	}

	logger.Printf("Storage: quotes=%s strategies=%s curves=%s",
		cfg.Backend, describe(pool != nil, "postgres", "memory"), describe(ch != nil, "clickhouse", "none"))
	return set, nil
}

// closesFallback keeps underlying closes in PostgreSQL when available.
func closesFallback(pool *pgstore.Pool) storage.UnderlyingCloseStore {
	if pool != nil {
		return pgstore.NewUnderlyingCloseStore(pool)
	}
	return memory.NewUnderlyingCloseStore()
}

func describe(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
