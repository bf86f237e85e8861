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

type CatalogRepo struct{ DB *pgxpool.Pool }

func (r *CatalogRepo) AddProduct(ctx context.Context, category, title string, priceCents, stock int, photoFileID string) (Product, error) {
	if priceCents < 0 {
		priceCents = 0
	}
	if stock < 0 {
		stock = 0
	}
	p := Product{
		ID:          uuid.NewString(),
		Category:    category,
		Title:       title,
		PriceCents:  priceCents,
		Stock:       stock,
		PhotoFileID: photoFileID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, category, title, price_cents, stock, photo_file_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Category, p.Title, p.PriceCents, p.Stock, p.PhotoFileID, p.CreatedAt,
	)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (r *CatalogRepo) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, category, title, price_cents, stock, photo_file_id, created_at
		FROM products WHERE id=$1`, id,
	).Scan(&p.ID, &p.Category, &p.Title, &p.PriceCents, &p.Stock, &p.PhotoFileID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *CatalogRepo) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) ListProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, category, title, price_cents, stock, photo_file_id, created_at
		FROM products WHERE category=$1 ORDER BY title`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (r *CatalogRepo) ListAll(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, category, title, price_cents, stock, photo_file_id, created_at
		FROM products ORDER BY category, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Category, &p.Title, &p.PriceCents, &p.Stock, &p.PhotoFileID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetStock: koreksi administratif, clamp >= 0.
func (r *CatalogRepo) SetStock(ctx context.Context, id string, stock int) (int, error) {
	if stock < 0 {
		stock = 0
	}
	ct, err := r.DB.Exec(ctx, `UPDATE products SET stock=$2 WHERE id=$1`, id, stock)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() == 0 {
		return 0, ErrNotFound
	}
	return stock, nil
}

// AdjustStock: stock += delta, hasil di-clamp ke 0 (over-return dianggap harmless).
func (r *CatalogRepo) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var stock int
	if err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, id).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	newStock := stock + delta
	if newStock < 0 {
		newStock = 0
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock=$2 WHERE id=$1`, id, newStock); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newStock, nil
}

func (r *CatalogRepo) SetPrice(ctx context.Context, id string, priceCents int) (int, error) {
	if priceCents < 0 {
		priceCents = 0
	}
	ct, err := r.DB.Exec(ctx, `UPDATE products SET price_cents=$2 WHERE id=$1`, id, priceCents)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() == 0 {
		return 0, ErrNotFound
	}
	return priceCents, nil
}

// DeleteProduct menghapus produk + baris cart yang menunjuk ke sana.
// Order items lama sengaja dibiarkan (histori beku).
func (r *CatalogRepo) DeleteProduct(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart WHERE product_id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
