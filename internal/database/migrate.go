// Package database runs the versioned SQL migrations for the CodeSherpa schema.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"codesherpa/internal/logging"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// MigrationConfig holds configuration for the migration runner
type MigrationConfig struct {
	// DatabaseURL is a postgres:// DSN or a sqlite://<path> location
	DatabaseURL string
}

// MigrationRunner applies the embedded migrations
type MigrationRunner struct {
	migrate *migrate.Migrate
	db      *sql.DB
	dialect string
	log     *zap.Logger
}

// MigrationStatus represents the current migration state
type MigrationStatus struct {
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// NewMigrationRunner opens the database and prepares the migration source
func NewMigrationRunner(config *MigrationConfig) (*MigrationRunner, error) {
	if config == nil || config.DatabaseURL == "" {
		return nil, errors.New("database URL is required")
	}

	r := &MigrationRunner{log: logging.Named("migrate")}

	var (
		driver migratedb.Driver
		err    error
	)
	switch dialect, dsn := ParseURL(config.DatabaseURL); dialect {
	case "postgres":
		r.db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
		}
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
		if err != nil {
			r.db.Close()
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		r.dialect = "postgres"

	case "sqlite":
		r.db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
		}
		// An in-memory database lives only as long as its one connection
		r.db.SetMaxOpenConns(1)
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
		if err != nil {
			r.db.Close()
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		r.dialect = "sqlite"

	default:
		return nil, fmt.Errorf("unsupported database URL: %s", dialect)
	}

	source, err := iofs.New(migrationFiles, "migrations/"+r.dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	r.migrate, err = migrate.NewWithInstance("iofs", source, r.dialect, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return r, nil
}

// ParseURL splits a database URL into its dialect and driver DSN
func ParseURL(url string) (dialect, dsn string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url
	case strings.HasPrefix(url, "sqlite://"):
		return "sqlite", strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		return "sqlite", strings.TrimPrefix(url, "sqlite:")
	}
	if i := strings.Index(url, "://"); i > 0 {
		return url[:i], ""
	}
	return "unknown", ""
}

// Dialect returns "postgres" or "sqlite"
func (r *MigrationRunner) Dialect() string {
	return r.dialect
}

// DB exposes the underlying connection
func (r *MigrationRunner) DB() *sql.DB {
	return r.db
}

// Up applies all pending migrations
func (r *MigrationRunner) Up() error {
	err := r.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		r.log.Info("no migrations to apply, database is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	r.logVersion("migrations applied")
	return nil
}

// Steps applies n migrations, or rolls back -n when n is negative
func (r *MigrationRunner) Steps(n int) error {
	err := r.migrate.Steps(n)
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration of %d step(s) failed: %w", n, err)
	}
	r.logVersion("migration steps applied")
	return nil
}

// Down rolls back every migration
func (r *MigrationRunner) Down() error {
	err := r.migrate.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("rollback all failed: %w", err)
	}
	r.log.Info("all migrations rolled back")
	return nil
}

// To migrates up or down to version
func (r *MigrationRunner) To(version uint) error {
	err := r.migrate.Migrate(version)
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	r.logVersion("migrated to version")
	return nil
}

// Force sets the version without running migrations, clearing a dirty state
func (r *MigrationRunner) Force(version int) error {
	if err := r.migrate.Force(version); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}
	r.log.Warn("migration version forced", zap.Int("version", version))
	return nil
}

// Version returns the current migration state
func (r *MigrationRunner) Version() (MigrationStatus, error) {
	version, dirty, err := r.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{Error: err.Error()}, err
	}
	return MigrationStatus{Version: version, Dirty: dirty, Applied: version > 0}, nil
}

// Close releases the source and the database connection
func (r *MigrationRunner) Close() error {
	srcErr, dbErr := r.migrate.Close()
	if srcErr != nil {
		return fmt.Errorf("failed to close source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

func (r *MigrationRunner) logVersion(msg string) {
	version, dirty, _ := r.migrate.Version()
	r.log.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
}

// RunMigrations applies every pending migration to the database at url
func RunMigrations(url string) error {
	runner, err := NewMigrationRunner(&MigrationConfig{DatabaseURL: url})
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up()
}
