package database

import (
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ajconsultancy/tradedesk/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	// _time_format=sqlite stores time.Time bindings in a format sqlite's
	// date functions can parse.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)&_time_format=sqlite", databasePath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	// Limit open connections to 1 for SQLite to avoid locking issues
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		stdlog.Fatalf("failed to ping database: %v", err)
	}
	DB = db
	logger.L.Info("Database connection established with WAL mode, busy_timeout, and foreign_keys enabled.")
}

// RunMigrations applies all pending migrations from migrationsDir to the
// global DB connection. It terminates the process on failure: the service
// must never run against a partially migrated schema.
func RunMigrations(migrationsDir string) {
	if DB == nil {
		stdlog.Fatal("database connection is not initialized before running migrations")
	}
	if err := MigrateUp(DB, migrationsDir); err != nil {
		logger.L.Error("Failed to apply migrations", "source", migrationsDir, "error", err)
		stdlog.Fatalf("failed to apply migrations: %v", err)
	}
	logger.L.Info("Database migrations applied.", "source", migrationsDir)
}

// MigrateUp runs migrations against an arbitrary connection. Split out from
// RunMigrations so tests can migrate temp databases.
func MigrateUp(db *sql.DB, migrationsDir string) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite migration driver: %w", err)
	}

	absDir, err := filepath.Abs(migrationsDir)
	if err != nil {
		return fmt.Errorf("resolving migrations dir: %w", err)
	}
	sourceURL := fmt.Sprintf("file://%s", filepath.ToSlash(absDir))

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migration instance from %s: %w", sourceURL, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
