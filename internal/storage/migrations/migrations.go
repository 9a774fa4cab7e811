// Package migrations applies the embedded schema of every SQL backend.
package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// migration is one embedded schema file.
type migration struct {
	name string
	sql  string
}

// load reads every .sql file under dir in lexical order, skipping empty files.
func load(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	var out []migration
	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, migration{name: file, sql: string(data)})
	}
	return out, nil
}

// statements splits a migration for drivers without multi-statement Exec.
func (m migration) statements() ([]string, error) {
	if err := validateNoSemicolonInStrings(m.sql); err != nil {
		return nil, fmt.Errorf("validate migration %s: %w", m.name, err)
	}
	return splitStatements(m.sql), nil
}

// splitStatements splits SQL content into individual statements by semicolon.
//
// The splitter does not handle semicolons inside string literals, block
// comments or dollar-quoted strings. Migrations use -- comments only and
// end each statement with a semicolon; validateNoSemicolonInStrings
// rejects files that break the first rule.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings reports a semicolon inside a single-quoted string.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			// '' is an escaped quote
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon found inside string literal at offset %d", i)
		}
	}
	return nil
}
