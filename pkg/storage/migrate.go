package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration to dbURL and reports the
// resulting schema version. It is the explicit, operator-invoked path to
// bringing a production database's schema up to date; Open's own
// idempotent CreateTable calls remain in place so tests and a first-run
// ":memory:" database don't also need this step.
func Migrate(dbURL string) (version uint, dirty bool, err error) {
	dsn := strings.TrimPrefix(dbURL, "sqlite://")
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return 0, false, fmt.Errorf("storage: open sqlite3 for migration: %w", err)
	}
	defer db.Close()

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return 0, false, fmt.Errorf("storage: create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, false, fmt.Errorf("storage: load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return 0, false, fmt.Errorf("storage: create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, false, fmt.Errorf("storage: apply migrations: %w", err)
	}

	return m.Version()
}
