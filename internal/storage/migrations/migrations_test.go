package migrations

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x Int32);

-- second
CREATE TABLE b (
    y String
);
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("Expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (x Int32)" {
		t.Errorf("Unexpected first statement: %q", stmts[0])
	}
	if !strings.HasPrefix(stmts[1], "CREATE TABLE b (") {
		t.Errorf("Unexpected second statement: %q", stmts[1])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	tests := []struct {
		sql     string
		wantErr bool
	}{
		{"SELECT 'a'; SELECT 'b';", false},
		{"SELECT 'it''s';", false},
		{"SELECT 'a;b';", true},
		{"INSERT INTO t VALUES ('x''; y');", true},
	}
	for _, tt := range tests {
		err := validateNoSemicolonInStrings(tt.sql)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateNoSemicolonInStrings(%q) error = %v, wantErr %v", tt.sql, err, tt.wantErr)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for name, loadFn := range map[string]func() ([]migration, error){
		"postgres":   func() ([]migration, error) { return load(PostgresFS, "postgres") },
		"clickhouse": func() ([]migration, error) { return load(ClickhouseFS, "clickhouse") },
		"sqlite":     func() ([]migration, error) { return load(SQLiteFS, "sqlite") },
	} {
		files, err := loadFn()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(files) == 0 {
			t.Errorf("%s: no migrations embedded", name)
		}
		for _, m := range files {
			stmts, err := m.statements()
			if err != nil {
				t.Errorf("%s/%s: %v", name, m.name, err)
			}
			if !strings.Contains(m.sql, "option_quotes") {
				t.Errorf("%s/%s does not create option_quotes", name, m.name)
			}
			if len(stmts) == 0 {
				t.Errorf("%s/%s has no statements", name, m.name)
			}
		}
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/optionforge")
	if err != nil || db != "optionforge" {
		t.Errorf("Expected optionforge, got %q (%v)", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("Expected error for DSN without database")
	}
}
