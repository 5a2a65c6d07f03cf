package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
)

const memoryPath = ":memory:"

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// NewSQLiteStore returns an unopened SQLite store for path.
func NewSQLiteStore(path string, opts ...Option) *SQLiteStore {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = path
	return &SQLiteStore{DataStore: newDataStore(opts), Settings: settings}
}

// Open connects to the database file, creating its directory, and migrates it.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return errors.Newf("sqlite path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if path != memoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("operation", "create_db_dir").
					Build()
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=1&_busy_timeout=5000"), store.gormConfig())
	if err != nil {
		return dbError(err, "open", "db_type", "sqlite")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open", "db_type", "sqlite")
	}
	// one connection keeps :memory: databases alive and serializes writers
	sqlDB.SetMaxOpenConns(1)

	store.DB = db
	if err := performAutoMigration(db, "sqlite"); err != nil {
		return err
	}

	store.log.Info("sqlite database opened", logger.String("path", path))
	return nil
}

// Close closes the database connection.
func (store *SQLiteStore) Close() error {
	return closeDB(store.DB, "sqlite")
}
