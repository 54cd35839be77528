// Package database opens the gorm connection shared by the repositories and
// the database artifact store.
package database

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config selects the driver and data source
type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Open initializes the database connection
func Open(cfg Config) (*gorm.DB, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// every new connection to an in-memory database starts empty
		db.DB().SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates the tables for the given records
func Migrate(db *gorm.DB, records ...interface{}) error {
	if err := db.AutoMigrate(records...).Error; err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
