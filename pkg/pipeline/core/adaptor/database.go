// Package adaptor defines the connection-level abstractions that
// infrastructure adapters implement.
package adaptor

import "database/sql"

// DBConnection is an open database connection handle.
// Concrete adapters (gorm-backed, in-memory dummy) implement this interface.
type DBConnection interface {
	// Type returns the database type identifier ("postgres", "mysql", "sqlite").
	Type() string
	// GetSQLDB returns the underlying *sql.DB, used by the migration runner.
	GetSQLDB() (*sql.DB, error)
	// Close releases the connection pool.
	Close() error
}
