package database

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"bluewell/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Close terminates the database connection.
	Close()

	Queries() Querier
}

type service struct {
	dbpool *pgxpool.Pool
	q      Querier
	name   string
}

func (s *service) Queries() Querier {
	return s.q
}

// NewService connects to Postgres and applies the schema. With no database host
// configured it falls back to an in-memory store so the API still runs locally.
func NewService(ctx context.Context, cfg config.Config) (Service, error) {
	if cfg.DBHost == "" {
		log.Warn().Msg("BLUEPRINT_DB_HOST not set, using in-memory store")
		return &service{q: NewMemoryStore(), name: "memory"}, nil
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSchema)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &service{dbpool: pool, q: New(pool), name: cfg.DBName}, nil
}

// NewMemoryService wraps an existing store, mainly for tests.
func NewMemoryService(store *MemoryStore) Service {
	return &service{q: store, name: "memory"}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Health checks the health of the database connection.
func (s *service) Health() map[string]string {
	stats := make(map[string]string)

	if s.dbpool == nil {
		stats["status"] = "up"
		stats["backend"] = "memory"
		return stats
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := s.dbpool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error().Err(err).Msg("db down")
		return stats
	}

	poolStats := s.dbpool.Stat()
	stats["status"] = "up"
	stats["backend"] = "postgres"
	stats["total_conns"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(poolStats.MaxConns()))
	stats["acquire_duration_ms"] = strconv.FormatInt(poolStats.AcquireDuration().Milliseconds(), 10)
	stats["empty_acquire_count"] = strconv.FormatInt(poolStats.EmptyAcquireCount(), 10)

	if poolStats.AcquiredConns() > (poolStats.MaxConns() * 8 / 10) { // 80% capacity
		stats["message"] = "The database connection pool is experiencing heavy load."
	}

	return stats
}

func (s *service) Close() {
	if s.dbpool == nil {
		return
	}
	log.Info().Str("database", s.name).Msg("Disconnected from database")
	s.dbpool.Close()
}
