package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/logger"
)

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// DSN returns the go-sql-driver connection string for the configured server.
func (store *MySQLStore) DSN() string {
	m := store.Settings.Output.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

// Open connects to the server and migrates the schema.
func (store *MySQLStore) Open() error {
	m := store.Settings.Output.MySQL
	log := store.log.With(
		logger.String("host", m.Host),
		logger.String("port", m.Port),
		logger.String("database", m.Database))

	db, err := gorm.Open(mysql.Open(store.DSN()), store.gormConfig())
	if err != nil {
		log.Error("failed to open MySQL database", logger.Error(err))
		return dbError(err, "open", "db_type", "mysql", "host", m.Host)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open", "db_type", "mysql")
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store.DB = db
	if err := performAutoMigration(db, "mysql"); err != nil {
		return err
	}

	log.Info("mysql database opened")
	return nil
}

// Close closes the database connection pool.
func (store *MySQLStore) Close() error {
	return closeDB(store.DB, "mysql")
}
