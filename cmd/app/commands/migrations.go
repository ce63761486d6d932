package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"

	"github.com/allisson/invsync/internal/database"
)

// RunMigrations applies pending migrations for the configured driver from
// migrations/<driver>. Returns nil when the schema is already current.
func RunMigrations(logger *slog.Logger, driver, connectionString string) error {
	logger.Info("running database migrations",
		slog.String("driver", driver),
	)

	db, err := database.Connect(database.Config{
		Driver:             driver,
		ConnectionString:   connectionString,
		MaxOpenConnections: 1,
		MaxIdleConnections: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m, err := database.NewMigrate(db, driver, "file://migrations/"+database.MigrationsDir(driver))
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Closing the migrate instance closes db too.
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}
