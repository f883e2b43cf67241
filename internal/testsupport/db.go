// Package testsupport opens in-memory SQLite databases with the module schema
// applied for package tests.
package testsupport

import (
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// NewDB opens an in-memory SQLite database with every SQLite migration
// applied.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})
	ApplyMigrations(t, db)
	return db
}

// ApplyMigrations executes the SQLite up migrations in order.
func ApplyMigrations(t *testing.T, db *bun.DB) {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(MigrationsDir(), "sqlite", "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)
	for _, file := range files {
		content, err := os.ReadFile(file)
		require.NoError(t, err)
		for _, stmt := range SplitStatements(string(content)) {
			_, err := db.Exec(stmt)
			require.NoError(t, err, "%s: %s", filepath.Base(file), stmt)
		}
	}
}

// MigrationsDir returns the absolute path of data/sql/migrations.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "data", "sql", "migrations")
}

// SplitStatements splits a SQL script on statement terminators, dropping
// blank lines and line comments.
func SplitStatements(sql string) []string {
	lines := strings.Split(sql, "\n")
	var builder strings.Builder
	var statements []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSuffix(builder.String(), ";"))
			builder.Reset()
		} else {
			builder.WriteString(" ")
		}
	}
	if builder.Len() > 0 {
		statements = append(statements, strings.TrimSpace(builder.String()))
	}
	return statements
}

// FixedClock returns the same instant on every call.
type FixedClock struct {
	T time.Time
}

// Now implements types.Clock.
func (c FixedClock) Now() time.Time { return c.T }

// StepClock advances by Step on every call.
type StepClock struct {
	T    time.Time
	Step time.Duration
}

// Now implements types.Clock.
func (c *StepClock) Now() time.Time {
	now := c.T
	c.T = c.T.Add(c.Step)
	return now
}
