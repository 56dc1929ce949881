package postgres

import (
	"context"
	"fmt"

	"secure-transfer-gateway/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Pool is the subset of *pgxpool.Pool the repositories use. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// NewPool creates a PostgreSQL connection pool using pgx.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("dbname", cfg.DBName).
		Int32("max_conns", cfg.MaxConns).
		Msg("PostgreSQL connection pool established")

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	account_id   TEXT PRIMARY KEY,
	display_name TEXT UNIQUE,
	holder_name  TEXT NOT NULL DEFAULT '',
	pin_hash     TEXT NOT NULL DEFAULT '',
	balance      NUMERIC(20, 2) NOT NULL CHECK (balance >= 0),
	version      BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS account_transactions (
	account_id        TEXT NOT NULL REFERENCES accounts (account_id),
	transaction_id    TEXT NOT NULL,
	type              TEXT NOT NULL,
	counterparty_id   TEXT NOT NULL,
	counterparty_name TEXT NOT NULL DEFAULT '',
	amount            NUMERIC(20, 2) NOT NULL CHECK (amount > 0),
	ts                TIMESTAMPTZ NOT NULL,
	category          TEXT NOT NULL,
	bank_tag          TEXT NOT NULL,
	PRIMARY KEY (account_id, transaction_id)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id         UUID PRIMARY KEY,
	account_id TEXT,
	session_id TEXT,
	action     TEXT NOT NULL,
	details    JSONB,
	ip_address TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_account ON audit_logs (account_id, created_at);
`

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
