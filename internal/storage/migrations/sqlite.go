package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// RunSQLiteMigrations applies all embedded SQLite files in one transaction.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	files, err := load(SQLiteFS, "sqlite")
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, m := range files {
		stmts, err := m.statements()
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}
	return tx.Commit()
}
