package database

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationsDir returns the migrations directory name for a driver.
func MigrationsDir(driver string) string {
	if driver == DriverPostgres {
		return "postgresql"
	}
	return driver
}

// NewMigrate builds a migrate instance bound to an already open connection.
// sourceURL points at the driver's migrations, e.g. "file://migrations/sqlite".
func NewMigrate(db *sql.DB, driver, sourceURL string) (*migrate.Migrate, error) {
	var (
		instance migratedb.Driver
		err      error
	)

	switch driver {
	case DriverSQLite:
		instance, err = sqlite.WithInstance(db, &sqlite.Config{})
	case DriverPostgres:
		instance, err = postgres.WithInstance(db, &postgres.Config{})
	case DriverMySQL:
		instance, err = mysql.WithInstance(db, &mysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migrate driver: %w", driver, err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, driver, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
