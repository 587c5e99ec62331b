package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"uniform-shop/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Service owns the connection pool
type Service interface {
	DB() *sql.DB
	Health() map[string]string
	Close() error
}

type service struct {
	db *sql.DB
}

// DSN builds a postgres connection string from configuration
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.Schema,
	)
}

// New opens the pool and verifies connectivity
func New(cfg config.DatabaseConfig) (Service, error) {
	db, err := sql.Open("pgx", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &service{db: db}, nil
}

func (s *service) DB() *sql.DB {
	return s.db
}

// Health pings the database and reports pool statistics
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	dbStats := s.db.Stats()
	stats["status"] = "up"
	stats["open_connections"] = fmt.Sprint(dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprint(dbStats.InUse)
	stats["idle"] = fmt.Sprint(dbStats.Idle)
	stats["wait_count"] = fmt.Sprint(dbStats.WaitCount)

	return stats
}

func (s *service) Close() error {
	return s.db.Close()
}
