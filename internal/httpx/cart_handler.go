package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/shop"
)

type CartHandler struct {
	Cart *shop.CartRepo
}

type cartMutateReq struct {
	UserID    int64  `json:"user_id"`
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type cartItemResp struct {
	ProductID  string `json:"product_id"`
	Title      string `json:"title"`
	PriceCents int    `json:"price_cents"`
	Qty        int    `json:"qty"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Post("/cart/reserve", h.reserve)
	r.Post("/cart/release", h.release)
	r.Post("/cart/clear", h.clear)
	r.Get("/cart/{userID}", h.list)
}

// reserve laporkan qty yang BENERAN didapat — parsial atau 0 itu hasil
// yang berarti, bukan failure generik.
func (h *CartHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req cartMutateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == 0 || req.ProductID == "" || req.Qty <= 0 {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	granted, err := h.Cart.Reserve(ctx, req.UserID, req.ProductID, req.Qty)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"granted": granted, "requested": req.Qty})
}

func (h *CartHandler) release(w http.ResponseWriter, r *http.Request) {
	var req cartMutateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == 0 || req.ProductID == "" || req.Qty <= 0 {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	released, err := h.Cart.Release(ctx, req.UserID, req.ProductID, req.Qty)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released": released, "requested": req.Qty})
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Cart.ClearAndReturnAll(ctx, req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Cart.Items(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]cartItemResp, 0, len(items))
	totalQty := 0
	totalCents := 0
	for _, it := range items {
		out = append(out, cartItemResp{ProductID: it.ProductID, Title: it.Title, PriceCents: it.PriceCents, Qty: it.Qty})
		totalQty += it.Qty
		totalCents += it.PriceCents * it.Qty
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       out,
		"total_qty":   totalQty,
		"total_cents": totalCents,
	})
}
