package gorm

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbconfig "github.com/tigerroll/cascade/pkg/pipeline/adaptor/database/config"
	coreconfig "github.com/tigerroll/cascade/pkg/pipeline/core/config"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

// Open opens a gorm connection for the given configuration.
func Open(cfg dbconfig.DatabaseConfig) (*GormDBAdapter, error) {
	dsn := cfg.BuildDSN()
	if dsn == "" {
		return nil, fmt.Errorf("cannot build DSN for database type '%s'", cfg.Type)
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		// The pipeline manages its own transactions and savepoints.
		SkipDefaultTransaction: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Type {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Infof("Opened %s database connection.", cfg.Type)
	return NewGormDBAdapter(db, cfg.Type), nil
}

// NewPipelineDBAdapter is an fx provider resolving the pipeline's database
// connection from the application configuration.
func NewPipelineDBAdapter(cfg *coreconfig.Config) (*GormDBAdapter, error) {
	ref := cfg.Cascade.Infrastructure.DatabaseRef
	dbCfg, err := dbconfig.Decode(cfg.Cascade.DatabaseConfigs, ref)
	if err != nil {
		return nil, err
	}
	return Open(dbCfg)
}
