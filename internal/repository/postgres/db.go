// Package postgres persists simulation results to PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vclusterlab/vclustersim/internal/config"
)

// DB wraps a PostgreSQL connection pool with logging.
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewDB creates a new PostgreSQL database connection and ensures the
// result tables exist.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db := &DB{pool: pool, logger: logger}
	if err := db.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
	)
	return db, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
	db.logger.Info("PostgreSQL connection closed")
}

// Health checks if the database is reachable.
func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// ensureSchema creates the append-only result tables.
func (db *DB) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS simulation_runs (
    id            TEXT PRIMARY KEY,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ,
    hosts         INT NOT NULL,
    pes_per_host  INT NOT NULL,
    host_ram_mib  BIGINT NOT NULL,
    first_fit     BOOLEAN NOT NULL,
    submitted_vms INT NOT NULL,
    placed_vms    INT NOT NULL,
    failed_vms    INT NOT NULL
);

CREATE TABLE IF NOT EXISTS placement_records (
    run_id   TEXT NOT NULL REFERENCES simulation_runs(id),
    clock    DOUBLE PRECISION NOT NULL,
    vm_id    BIGINT NOT NULL,
    vcpus    INT NOT NULL,
    level    DOUBLE PRECISION NOT NULL,
    placed   BOOLEAN NOT NULL,
    host_id  BIGINT NOT NULL,
    used_pes BIGINT NOT NULL,
    reason   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS placement_records_run_idx ON placement_records (run_id, clock);

CREATE TABLE IF NOT EXISTS host_samples (
    run_id            TEXT NOT NULL REFERENCES simulation_runs(id),
    clock             DOUBLE PRECISION NOT NULL,
    host_id           BIGINT NOT NULL,
    used_pes          BIGINT NOT NULL,
    total_pes         INT NOT NULL,
    ram_allocated_mib BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS host_samples_run_idx ON host_samples (run_id, host_id, clock);
`
	if _, err := db.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create result tables: %w", err)
	}
	return nil
}
