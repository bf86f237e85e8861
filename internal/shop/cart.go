package shop

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CartRepo: reservasi stok per (user, product). Setiap qty di cart sudah
// dipotong dari products.stock pada saat Reserve; Release/Clear mengembalikannya.
type CartRepo struct{ DB *pgxpool.Pool }

// Reserve memotong stok dan menaruhnya di cart. Grant = min(qty, stok tersedia),
// jadi bisa parsial; 0 kalau stok habis. Produk tidak ada -> ErrNotFound.
// Semua baris cart user ikut di-touch (heartbeat seluruh keranjang).
func (r *CartRepo) Reserve(ctx context.Context, userID int64, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, nil
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var stock int
	if err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if stock <= 0 {
		return 0, nil // tanpa mutasi
	}

	granted := qty
	if granted > stock {
		granted = stock
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id=$1`, productID, granted); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO cart(user_id, product_id, qty, touched_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (user_id, product_id) DO UPDATE SET qty = cart.qty + EXCLUDED.qty
	`, userID, productID, granted); err != nil {
		return 0, err
	}
	if err := r.touch(ctx, tx, userID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return granted, nil
}

// Release mengembalikan qty dari cart ke stok. Dibatasi jumlah yang benar-benar
// dipegang; baris dengan qty 0 dihapus. Tidak ada reservasi -> released 0, bukan error.
func (r *CartRepo) Release(ctx context.Context, userID int64, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, nil
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var have int
	err = tx.QueryRow(ctx, `SELECT qty FROM cart WHERE user_id=$1 AND product_id=$2 FOR UPDATE`, userID, productID).Scan(&have)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	released := qty
	if released > have {
		released = have
	}
	newQty := have - released
	if newQty <= 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM cart WHERE user_id=$1 AND product_id=$2`, userID, productID); err != nil {
			return 0, err
		}
	} else {
		if _, err := tx.Exec(ctx, `UPDATE cart SET qty=$3 WHERE user_id=$1 AND product_id=$2`, userID, productID, newQty); err != nil {
			return 0, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id=$1`, productID, released); err != nil {
		return 0, err
	}
	if err := r.touch(ctx, tx, userID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return released, nil
}

// ClearAndReturnAll mengosongkan cart user dan mengembalikan semua qty ke stok.
// Idempotent: cart kosong = no-op.
func (r *CartRepo) ClearAndReturnAll(ctx context.Context, userID int64) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := restockCartTx(ctx, tx, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart WHERE user_id=$1`, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func restockCartTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	rows, err := tx.Query(ctx, `SELECT product_id, qty FROM cart WHERE user_id=$1 FOR UPDATE`, userID)
	if err != nil {
		return err
	}
	type rec struct {
		pid string
		qty int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty); err != nil {
			rows.Close()
			return err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, x := range recs {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id=$1`, x.pid, x.qty); err != nil {
			return err
		}
	}
	return nil
}

// Items: isi cart user, join ke products buat title/price, urut judul.
func (r *CartRepo) Items(ctx context.Context, userID int64) ([]CartItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT c.user_id, c.product_id, p.title, p.price_cents, c.qty, c.touched_at
		FROM cart c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id=$1
		ORDER BY p.title`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.UserID, &it.ProductID, &it.Title, &it.PriceCents, &it.Qty, &it.TouchedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *CartRepo) TotalQuantity(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COALESCE(SUM(qty),0) FROM cart WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

// StaleCartUsers: user yang touch terbarunya lebih tua dari threshold.
func (r *CartRepo) StaleCartUsers(ctx context.Context, threshold time.Duration) ([]int64, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	rows, err := r.DB.Query(ctx, `
		SELECT user_id FROM cart
		GROUP BY user_id
		HAVING MAX(touched_at) <= $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

// ReleaseStaleCart: versi ClearAndReturnAll untuk sweeper. Touch timestamp
// dicek ulang DI DALAM transaksi (baris sudah terkunci) — kalau cart disentuh
// lagi setelah query staleness, release jadi no-op, bukan balapan.
func (r *CartRepo) ReleaseStaleCart(ctx context.Context, userID int64, cutoff time.Time) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT product_id, qty, touched_at FROM cart WHERE user_id=$1 FOR UPDATE`, userID)
	if err != nil {
		return 0, err
	}
	type rec struct {
		pid     string
		qty     int
		touched time.Time
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty, &x.touched); err != nil {
			rows.Close()
			return 0, err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	released := 0
	for _, x := range recs {
		if x.touched.After(cutoff) {
			return 0, nil // cart hidup lagi, jangan disapu
		}
		released += x.qty
	}
	for _, x := range recs {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id=$1`, x.pid, x.qty); err != nil {
			return 0, err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart WHERE user_id=$1`, userID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return released, nil
}

func (r *CartRepo) touch(ctx context.Context, tx pgx.Tx, userID int64) error {
	_, err := tx.Exec(ctx, `UPDATE cart SET touched_at=now() WHERE user_id=$1`, userID)
	return err
}
