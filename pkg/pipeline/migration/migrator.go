// Package migration applies the pipeline's schema migrations with
// golang-migrate, reading migration files from an embedded filesystem.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/cascade/pkg/pipeline/core/adaptor"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

// DefaultMigrationsTable is the bookkeeping table golang-migrate maintains.
const DefaultMigrationsTable = "schema_migrations"

// Migrator applies schema migrations to the pipeline database.
type Migrator interface {
	// Up applies all pending migrations from the given filesystem path.
	Up(ctx context.Context, migrationFS fs.FS, path string) error
}

type migratorImpl struct {
	dbConn adaptor.DBConnection
	dbType string
}

// NewMigrator creates a Migrator over the given connection.
func NewMigrator(dbConn adaptor.DBConnection) Migrator {
	return &migratorImpl{
		dbConn: dbConn,
		dbType: dbConn.Type(),
	}
}

// databaseDriver selects the migrate/v4 driver matching the connection type.
func (m *migratorImpl) databaseDriver(sqlDB *sql.DB) (database.Driver, error) {
	switch m.dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{
			MigrationsTable: DefaultMigrationsTable,
		})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{
			MigrationsTable: DefaultMigrationsTable,
		})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{
			MigrationsTable: DefaultMigrationsTable,
		})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *migratorImpl) migrateInstance(migrationFS fs.FS, path string) (*migrate.Migrate, error) {
	sqlDB, err := m.dbConn.GetSQLDB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}

	dbDriver, err := m.databaseDriver(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mInstance, nil
}

// Up applies all pending migrations. ErrNoChange is treated as success.
func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string) error {
	logger.Infof("Applying schema migrations (DB: %s, Path: %s).", m.dbType, path)

	mInstance, err := m.migrateInstance(migrationFS, path)
	if err != nil {
		return err
	}
	defer mInstance.Close()

	if err := mInstance.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed (DB: %s, Path: %s): %w", m.dbType, path, err)
	}

	logger.Infof("Schema migrations up to date.")
	return nil
}
