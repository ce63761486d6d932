// Package testutil provides testing utilities for database-backed tests.
//
// Database Setup:
//
//	db := testutil.SetupSQLiteDB(t)
//	defer testutil.TeardownDB(t, db)
//
// Each call opens a private in-memory SQLite database pinned to a single
// connection, so tests never share state.
//
// Migration Path:
//
// Migrations are automatically discovered by walking up from the current
// working directory until a "migrations/{dbType}" directory is found.
package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/require"

	"github.com/allisson/invsync/internal/database"
)

// SetupSQLiteDB opens an in-memory SQLite database and runs migrations.
func SetupSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err, "failed to open sqlite")

	// Every connection to ":memory:" is a distinct database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	err = db.Ping()
	require.NoError(t, err, "failed to ping sqlite database")

	RunMigrations(t, db, database.DriverSQLite)

	return db
}

// TeardownDB closes the database connection and cleans up.
func TeardownDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if db != nil {
		err := db.Close()
		require.NoError(t, err, "failed to close database connection")
	}
}

// RunMigrations applies all pending migrations for driver to db.
func RunMigrations(t *testing.T, db *sql.DB, driver string) {
	t.Helper()

	migrationsPath, err := getMigrationsPath(database.MigrationsDir(driver))
	require.NoError(t, err, "failed to find migrations path")

	m, err := database.NewMigrate(db, driver, fmt.Sprintf("file://%s", migrationsPath))
	require.NoError(t, err, "failed to create migrate instance")

	// The migrate instance is not closed: closing it would close db, which the caller owns.
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, fmt.Sprintf("failed to run migrations from %s", migrationsPath))
	}
}

// getMigrationsPath resolves the absolute path to migration files for the specified database type.
// Walks up the directory tree from current working directory to find the migrations folder.
func getMigrationsPath(dbType string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for {
		migrationsPath := filepath.Join(dir, "migrations", dbType)
		if _, err := os.Stat(migrationsPath); err == nil {
			return migrationsPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("migrations directory not found for %s (started from %s)", dbType, dir)
		}
		dir = parent
	}
}
