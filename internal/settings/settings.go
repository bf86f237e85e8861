package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/shop"
)

// Store: key -> string kecil yang harus selamat dari restart
// (channel notifikasi, preferensi bahasa per user, dsb).
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.DB.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shop.ErrNotFound
	}
	return v, err
}

// Set: dibuat saat tulis pertama, di-overwrite di tulisan berikutnya.
func (r *Repo) Set(ctx context.Context, key, value string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO settings(key, value) VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}
