package datastore

import (
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
)

// DefaultSlowQueryThreshold is the duration after which a statement is logged as slow.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// gormConfig routes gorm logging through the datastore logger and, when
// query metrics are configured, feeds every statement into them.
func (ds *DataStore) gormConfig() *gorm.Config {
	adapter := logger.NewGormLoggerAdapter(GetLogger().Module("gorm"), DefaultSlowQueryThreshold)
	if ds.queries != nil {
		queries := ds.queries
		adapter = adapter.WithObserver(func(sql string, elapsed time.Duration, err error) {
			queries.ObserveQuery(sql, elapsed.Seconds(), err != nil)
		})
	}

	return &gorm.Config{
		Logger:         gormlogger.Interface(adapter),
		TranslateError: true,
	}
}

// performAutoMigration creates or updates every table.
func performAutoMigration(db *gorm.DB, dbType string) error {
	start := time.Now()
	log := GetLogger().With(logger.String("db_type", dbType))

	if err := db.AutoMigrate(allModels()...); err != nil {
		return errors.New(errors.Join(errors.ErrPersistenceFailure, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityCritical).
			Context("operation", "auto_migrate").
			Context("db_type", dbType).
			Build()
	}

	log.Debug("database migration complete",
		logger.Int("tables", len(allModels())),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// closeDB closes the pool behind db.
func closeDB(db *gorm.DB, dbType string) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "close", "db_type", dbType)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "db_type", dbType)
	}
	GetLogger().Debug("database connection closed", logger.String("db_type", dbType))
	return nil
}
