package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate bikin skema kalau belum ada. Idempotent, jalan di setiap startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products(
			id            TEXT PRIMARY KEY,
			category      TEXT NOT NULL,
			title         TEXT NOT NULL,
			price_cents   INT  NOT NULL,
			stock         INT  NOT NULL DEFAULT 0,
			photo_file_id TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS cart(
			user_id    BIGINT NOT NULL,
			product_id TEXT   NOT NULL,
			qty        INT    NOT NULL,
			touched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS orders(
			id          TEXT PRIMARY KEY,
			user_id     BIGINT NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			phone       TEXT NOT NULL DEFAULT '',
			address     TEXT NOT NULL DEFAULT '',
			pay_method  TEXT NOT NULL DEFAULT '',
			tg_username TEXT NOT NULL DEFAULT '',
			tg_name     TEXT NOT NULL DEFAULT '',
			total_cents INT  NOT NULL,
			status      TEXT NOT NULL DEFAULT 'new',
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items(
			order_id    TEXT NOT NULL,
			product_id  TEXT NOT NULL,
			title       TEXT NOT NULL,
			price_cents INT  NOT NULL,
			qty         INT  NOT NULL,
			PRIMARY KEY (order_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS settings(
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
