package clickhouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port()))
	require.NoError(t, err)

	runMigrations(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// runMigrations applies the schema statements from the migrations directory.
// The driver does not accept multi-statement Exec, so files are split on ';'.
func runMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	content, err := os.ReadFile(filepath.Join(findSQLDir(t), "001_init.sql"))
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(content), ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		require.NoError(t, conn.Exec(ctx, strings.Join(lines, "\n")))
	}
}

// findSQLDir locates internal/storage/migrations/clickhouse relative to the test.
func findSQLDir(t *testing.T) string {
	t.Helper()
	paths := []string{
		"../migrations/clickhouse",
		"internal/storage/migrations/clickhouse",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Fatal("could not find clickhouse migrations directory")
	return ""
}

// ptr is a helper to create pointers for test values
func ptr[T any](v T) *T {
	return &v
}
