package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepo struct{ DB *pgxpool.Pool }

// Alasan hasil AdjustLine, dikembalikan ke caller buat ditampilkan.
const (
	ReasonOK              = "ok"
	ReasonItemNotFound    = "item_not_found"
	ReasonProductNotFound = "product_not_found"
	ReasonNoStock         = "no_stock"
	ReasonNotEditable     = "not_editable"
)

type AdjustLineResult struct {
	OK       bool   `json:"ok"`
	NewQty   int    `json:"new_qty"`
	NewTotal int    `json:"new_total_cents"`
	Reason   string `json:"reason"`
}

// CreateFromCart memindahkan seluruh reservasi user jadi order berstatus `new`.
// Title & price dibekukan saat ini juga; baris cart dihapus TANPA restock —
// klaim stoknya pindah dari cart ke order, bukan dilepas.
func (r *OrderRepo) CreateFromCart(ctx context.Context, userID int64, c Contact, b Buyer) (Order, []OrderItem, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, err
	}
	defer tx.Rollback(ctx)

	// kunci baris cart supaya tidak balapan dengan sweeper/mutasi lain
	rows, err := tx.Query(ctx, `
		SELECT c.product_id, p.title, p.price_cents, c.qty
		FROM cart c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id=$1
		ORDER BY p.title
		FOR UPDATE OF c`, userID)
	if err != nil {
		return Order{}, nil, err
	}

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Title, &it.PriceCents, &it.Qty); err != nil {
			rows.Close()
			return Order{}, nil, err
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, nil, err
	}
	if len(items) == 0 {
		return Order{}, nil, ErrEmptyCart
	}

	total := 0
	for _, it := range items {
		total += it.PriceCents * it.Qty
	}

	o := Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       c.Name,
		Phone:      c.Phone,
		Address:    c.Address,
		PayMethod:  c.PayMethod,
		TgUsername: b.Username,
		TgName:     b.DisplayName,
		TotalCents: total,
		Status:     StatusNew,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, name, phone, address, pay_method, tg_username, tg_name, total_cents, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.UserID, o.Name, o.Phone, o.Address, o.PayMethod, o.TgUsername, o.TgName, o.TotalCents, o.Status, o.CreatedAt,
	)
	if err != nil {
		return Order{}, nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = o.ID
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, title, price_cents, qty)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, items[i].ProductID, items[i].Title, items[i].PriceCents, items[i].Qty,
		); err != nil {
			return Order{}, nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	// cart dihapus begitu saja: stok tetap terpotong, pemiliknya kini order
	if _, err := tx.Exec(ctx, `DELETE FROM cart WHERE user_id=$1`, userID); err != nil {
		return Order{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, name, phone, address, pay_method, tg_username, tg_name, total_cents, status, created_at
		FROM orders WHERE id=$1`, orderID,
	).Scan(&o.ID, &o.UserID, &o.Name, &o.Phone, &o.Address, &o.PayMethod, &o.TgUsername, &o.TgName, &o.TotalCents, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *OrderRepo) Items(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, title, price_cents, qty
		FROM order_items WHERE order_id=$1 ORDER BY title`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Title, &it.PriceCents, &it.Qty); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SetStatus: tulis status tanpa validasi transisi. Pakai Accept/Decline/Cancel
// kecuali memang sengaja mem-bypass mesin status.
func (r *OrderRepo) SetStatus(ctx context.Context, orderID string, st Status) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, orderID, st)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrderRepo) ListByStatus(ctx context.Context, st Status, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, name, phone, address, pay_method, tg_username, tg_name, total_cents, status, created_at
		FROM orders WHERE status=$1
		ORDER BY created_at DESC
		LIMIT $2`, st, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Name, &o.Phone, &o.Address, &o.PayMethod, &o.TgUsername, &o.TgName, &o.TotalCents, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecalcTotal: total_cents adalah cache, bukan derived read; setiap mutasi
// line item wajib diikuti recalc.
func (r *OrderRepo) RecalcTotal(ctx context.Context, orderID string) (int, error) {
	var total int
	err := r.DB.QueryRow(ctx, `
		UPDATE orders
		SET total_cents = (SELECT COALESCE(SUM(price_cents*qty),0) FROM order_items WHERE order_id=$1)
		WHERE id=$1
		RETURNING total_cents`, orderID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return total, err
}

func recalcTotalTx(ctx context.Context, tx pgx.Tx, orderID string) (int, error) {
	var total int
	err := tx.QueryRow(ctx, `
		UPDATE orders
		SET total_cents = (SELECT COALESCE(SUM(price_cents*qty),0) FROM order_items WHERE order_id=$1)
		WHERE id=$1
		RETURNING total_cents`, orderID).Scan(&total)
	return total, err
}

// AdjustLine: koreksi operator atas qty line item order berstatus `new`.
// delta > 0 ambil dari stok (all-or-nothing, gagal no_stock kalau kurang);
// delta < 0 balikin ke stok, di-clamp ke qty yang dipegang; qty 0 -> baris
// dihapus. Selalu tutup dengan recalc total. Guard status ada DI SINI, bukan
// di caller, supaya tidak bisa dilewati.
func (r *OrderRepo) AdjustLine(ctx context.Context, orderID, productID string, delta int) (AdjustLineResult, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return AdjustLineResult{}, err
	}
	defer tx.Rollback(ctx)

	var st Status
	var total int
	err = tx.QueryRow(ctx, `SELECT status, total_cents FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&st, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return AdjustLineResult{}, ErrNotFound
	}
	if err != nil {
		return AdjustLineResult{}, err
	}
	if st != StatusNew {
		return AdjustLineResult{NewTotal: total, Reason: ReasonNotEditable}, nil
	}

	finish := func(res AdjustLineResult) (AdjustLineResult, error) {
		total, err := recalcTotalTx(ctx, tx, orderID)
		if err != nil {
			return AdjustLineResult{}, err
		}
		res.NewTotal = total
		if err := tx.Commit(ctx); err != nil {
			return AdjustLineResult{}, err
		}
		return res, nil
	}

	var qty int
	err = tx.QueryRow(ctx, `SELECT qty FROM order_items WHERE order_id=$1 AND product_id=$2 FOR UPDATE`, orderID, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return finish(AdjustLineResult{Reason: ReasonItemNotFound})
	}
	if err != nil {
		return AdjustLineResult{}, err
	}

	switch {
	case delta > 0:
		var stock int
		err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return finish(AdjustLineResult{NewQty: qty, Reason: ReasonProductNotFound})
		}
		if err != nil {
			return AdjustLineResult{}, err
		}
		if stock < delta {
			// all-or-nothing: koreksi operator, bukan best-effort seperti cart
			return finish(AdjustLineResult{NewQty: qty, Reason: ReasonNoStock})
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id=$1`, productID, delta); err != nil {
			return AdjustLineResult{}, err
		}
		qty += delta
		if _, err := tx.Exec(ctx, `UPDATE order_items SET qty=$3 WHERE order_id=$1 AND product_id=$2`, orderID, productID, qty); err != nil {
			return AdjustLineResult{}, err
		}

	case delta < 0:
		back := -delta
		if back > qty {
			back = qty // tidak bisa balikin lebih dari yang dipegang
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id=$1`, productID, back); err != nil {
			return AdjustLineResult{}, err
		}
		qty -= back
		if qty <= 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1 AND product_id=$2`, orderID, productID); err != nil {
				return AdjustLineResult{}, err
			}
		} else {
			if _, err := tx.Exec(ctx, `UPDATE order_items SET qty=$3 WHERE order_id=$1 AND product_id=$2`, orderID, productID, qty); err != nil {
				return AdjustLineResult{}, err
			}
		}
	}

	return finish(AdjustLineResult{OK: true, NewQty: qty, Reason: ReasonOK})
}

// Accept: new -> accepted. Stok TIDAK disentuh — barang memang terjual.
func (r *OrderRepo) Accept(ctx context.Context, orderID string) error {
	return r.transition(ctx, orderID, StatusAccepted, false)
}

// Decline: new -> declined, seluruh line item dikembalikan ke stok.
func (r *OrderRepo) Decline(ctx context.Context, orderID string) error {
	return r.transition(ctx, orderID, StatusDeclined, true)
}

// Cancel: sama dengan Decline utk stok, status beda buat pelaporan.
func (r *OrderRepo) Cancel(ctx context.Context, orderID string) error {
	return r.transition(ctx, orderID, StatusCancelled, true)
}

// transition memvalidasi mesin status di dalam transaksi yang sama dengan
// restock-nya. Guard "already processed" ini load-bearing: decline dua kali
// tanpa guard = stok dikredit dua kali.
func (r *OrderRepo) transition(ctx context.Context, orderID string, to Status, restock bool) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var cur Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !CanTransition(cur, to) {
		return ErrAlreadyProcessed
	}

	if restock {
		rows, err := tx.Query(ctx, `SELECT product_id, qty FROM order_items WHERE order_id=$1`, orderID)
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
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, orderID, to); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
