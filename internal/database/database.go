package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // Registers the sqlite3 driver.
)

// Run history is written from HTTP and bot handlers concurrently.
const dsnOptions = "?_journal_mode=WAL&_busy_timeout=5000"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Database stores content-free run records.
type Database struct {
	db  *sql.DB
	log *slog.Logger
}

func New(ctx context.Context, dbPath string, log *slog.Logger) (*Database, error) {
	conn, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping DB: %w", err), conn.Close())
	}

	d := &Database{db: conn, log: log.With("dbPath", dbPath)}

	if err = d.migrate(ctx); err != nil {
		return nil, errors.Join(err, conn.Close())
	}

	return d, nil
}

func (d *Database) migrate(ctx context.Context) error {
	driver, err := sqlite3.WithInstance(d.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migrate source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		d.log.WarnContext(ctx, "Failed to fetch migration version",
			"error", err)

		return nil
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		d.log.InfoContext(ctx, "Schema is up to date",
			"version", version,
			"dirty", dirty)
	} else {
		d.log.InfoContext(ctx, "Schema is migrated",
			"version", version,
			"dirty", dirty)
	}

	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
