package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/config"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/shop"
)

type CatalogHandler struct {
	Catalog   *shop.CatalogRepo
	Operators config.OperatorSet
}

type productResp struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	PriceCents  int    `json:"price_cents"`
	Stock       int    `json:"stock"`
	PhotoFileID string `json:"photo_file_id,omitempty"`
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/catalog/categories", h.categories)
	r.Get("/catalog/products", h.products)
	r.Get("/catalog/products/{id}", h.product)

	r.Group(func(g chi.Router) {
		g.Use(RequireOperator(h.Operators))
		g.Post("/admin/products", h.addProduct)
		g.Post("/admin/products/{id}/stock", h.setStock)
		g.Post("/admin/products/{id}/stock/adjust", h.adjustStock)
		g.Post("/admin/products/{id}/price", h.setPrice)
		g.Delete("/admin/products/{id}", h.deleteProduct)
	})
}

func (h *CatalogHandler) categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cats, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *CatalogHandler) products(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var (
		list []shop.Product
		err  error
	)
	if cat := r.URL.Query().Get("category"); cat != "" {
		list, err = h.Catalog.ListProductsByCategory(ctx, cat)
	} else {
		list, err = h.Catalog.ListAll(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]productResp, 0, len(list))
	for _, p := range list {
		out = append(out, toProductResp(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) product(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProductResp(p))
}

func (h *CatalogHandler) addProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category    string `json:"category"`
		Title       string `json:"title"`
		PriceCents  int    `json:"price_cents"`
		Stock       int    `json:"stock"`
		PhotoFileID string `json:"photo_file_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Category == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Catalog.AddProduct(ctx, req.Category, req.Title, req.PriceCents, req.Stock, req.PhotoFileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toProductResp(p))
}

func (h *CatalogHandler) setStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stock int `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	newStock, err := h.Catalog.SetStock(ctx, chi.URLParam(r, "id"), req.Stock)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stock": newStock})
}

func (h *CatalogHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	newStock, err := h.Catalog.AdjustStock(ctx, chi.URLParam(r, "id"), req.Delta)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stock": newStock})
}

func (h *CatalogHandler) setPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PriceCents int `json:"price_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	newPrice, err := h.Catalog.SetPrice(ctx, chi.URLParam(r, "id"), req.PriceCents)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"price_cents": newPrice})
}

func (h *CatalogHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Catalog.DeleteProduct(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func toProductResp(p shop.Product) productResp {
	return productResp{
		ID:          p.ID,
		Category:    p.Category,
		Title:       p.Title,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		PhotoFileID: p.PhotoFileID,
	}
}
