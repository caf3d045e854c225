// Package gorm provides the gorm-backed implementation of the pipeline's
// database connection and transaction abstractions.
package gorm

import (
	"database/sql"

	"gorm.io/gorm"

	"github.com/tigerroll/cascade/pkg/pipeline/core/adaptor"
)

// GormDBAdapter implements adaptor.DBConnection over a *gorm.DB.
type GormDBAdapter struct {
	db     *gorm.DB
	dbType string
}

// Verify the interface is satisfied.
var _ adaptor.DBConnection = (*GormDBAdapter)(nil)

// NewGormDBAdapter wraps an open gorm handle.
func NewGormDBAdapter(db *gorm.DB, dbType string) *GormDBAdapter {
	return &GormDBAdapter{db: db, dbType: dbType}
}

// Type returns the database type identifier.
func (a *GormDBAdapter) Type() string {
	return a.dbType
}

// GetGormDB returns the underlying gorm handle.
// Only the adaptor and infrastructure layers may depend on this.
func (a *GormDBAdapter) GetGormDB() *gorm.DB {
	return a.db
}

// GetSQLDB returns the underlying *sql.DB, used by the migration runner.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	return a.db.DB()
}

// Close releases the connection pool.
func (a *GormDBAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
