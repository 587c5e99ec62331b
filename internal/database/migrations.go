package database

import (
	"database/sql"
	"fmt"

	"uniform-shop/migrations"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func init() {
	goose.SetBaseFS(migrations.FS)
}

// RunMigrations executes all pending database migrations
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	logger.Info("Checking for pending migrations...")

	if err := goose.Up(db, "."); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	logger.Info("Migrations completed successfully", zap.Int64("version", version))
	return nil
}

// MigrationStatus prints the applied state of every migration
func MigrationStatus(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.Status(db, ".")
}
