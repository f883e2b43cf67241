package listviews

import (
	"embed"
	"io/fs"
)

// MigrationsFS contains SQL migrations for both PostgreSQL and SQLite.
//
// The migrations are organized in a dialect-aware structure:
//   - Root files (data/sql/migrations/*.sql) contain PostgreSQL migrations
//   - SQLite overrides are in data/sql/migrations/sqlite/*.sql
//
// The go-persistence-bun loader selects the correct migrations based on the
// database dialect being used.
//
// Usage:
//
//	import "io/fs"
//	import listviews "github.com/thrivehealth/go-listviews"
//	import persistence "github.com/goliatone/go-persistence-bun"
//
//	migrationsFS, _ := listviews.GetMigrationsFS()
//	client.RegisterDialectMigrations(
//	    migrationsFS,
//	    persistence.WithDialectSourceLabel("."),
//	    persistence.WithValidationTargets("postgres", "sqlite"),
//	)
//
//go:embed data/sql/migrations
var MigrationsFS embed.FS

// GetMigrationsFS returns the migrations rooted at data/sql/migrations.
func GetMigrationsFS() (fs.FS, error) {
	return fs.Sub(MigrationsFS, "data/sql/migrations")
}
