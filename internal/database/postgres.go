package database

import (
	"context"
	"fmt"
	"time"

	"github.com/irfndi/celebrum-ledger/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

// PoolConfig builds the pgxpool configuration from cfg. Supabase pooler URLs
// are accepted through DatabaseURL.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil && d > 0 {
		poolCfg.MaxConnLifetime = d
	}
	if d, err := time.ParseDuration(cfg.ConnMaxIdleTime); err == nil && d > 0 {
		poolCfg.MaxConnIdleTime = d
	}
	return poolCfg, nil
}

func NewPostgresConnection(ctx context.Context, cfg config.DatabaseConfig) (*PostgresDB, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("max_conns", poolCfg.MaxConns).Info("Successfully connected to PostgreSQL")

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logrus.Info("PostgreSQL connection closed")
	}
}

func (db *PostgresDB) HealthCheck(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return db.Pool.Ping(ctx)
}
