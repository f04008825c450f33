package db

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	// Registers the "postgres" database driver with golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	// database/sql driver used by the migrate postgres driver.
	_ "github.com/lib/pq"

	"github.com/user/ficticia-go/apperror"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateRunner is the subset of *migrate.Migrate the Migrator needs.
type migrateRunner interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Close() (source error, database error)
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m migrateRunner
}

// NewMigrator opens a migrator against databaseURL (a postgres:// URL).
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, apperror.NewMigrationError("failed to open embedded migrations", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		_ = source.Close()
		return nil, apperror.NewMigrationError("failed to create migrator", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. Being already up to date is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewMigrationError("failed to apply migrations", err)
	}
	return nil
}

// Down rolls every migration back. This drops all identity data.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperror.NewMigrationError("failed to roll back migrations", err)
	}
	return nil
}

// Version reports the applied schema version; 0 means nothing has been applied.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperror.NewMigrationError("failed to read schema version", err)
	}
	return version, dirty, nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		return apperror.NewMigrationError("failed to close migrator", err)
	}
	return nil
}

// RunMigrations applies pending migrations and closes the migrator.
func RunMigrations(databaseURL string) (err error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return m.Up()
}
