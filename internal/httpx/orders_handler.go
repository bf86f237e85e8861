package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/config"
	kafkax "github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/kafka"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/redisx"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/shop"
)

type OrdersHandler struct {
	Orders         *shop.OrderRepo
	Redis          *redis.Client
	ProducerCreate *kafkax.Producer // shop.order.created
	ProducerStatus *kafkax.Producer // shop.order.status
	Operators      config.OperatorSet
	Service        string
}

type createOrderReq struct {
	UserID     int64  `json:"user_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	PayMethod  string `json:"pay_method"`
	TgUsername string `json:"tg_username"`
	TgName     string `json:"tg_name"`
}

type orderItemResp struct {
	ProductID  string `json:"product_id"`
	Title      string `json:"title"`
	PriceCents int    `json:"price_cents"`
	Qty        int    `json:"qty"`
}

type orderResp struct {
	OrderID    string          `json:"order_id"`
	UserID     int64           `json:"user_id"`
	Status     shop.Status     `json:"status"`
	TotalCents int             `json:"total_cents"`
	Name       string          `json:"name,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	Address    string          `json:"address,omitempty"`
	PayMethod  string          `json:"pay_method,omitempty"`
	TgUsername string          `json:"tg_username,omitempty"`
	TgName     string          `json:"tg_name,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Items      []orderItemResp `json:"items,omitempty"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)

	r.Group(func(g chi.Router) {
		g.Use(RequireOperator(h.Operators))
		g.Get("/admin/orders", h.listOrders)
		g.Post("/admin/orders/{id}/accept", h.accept)
		g.Post("/admin/orders/{id}/decline", h.decline)
		g.Post("/admin/orders/{id}/cancel", h.cancel)
		g.Post("/admin/orders/{id}/items/{productID}", h.adjustLine)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, items, err := h.Orders.CreateFromCart(ctx, req.UserID,
		shop.Contact{Name: req.Name, Phone: req.Phone, Address: req.Address, PayMethod: req.PayMethod},
		shop.Buyer{Username: req.TgUsername, DisplayName: req.TgName},
	)
	if errors.Is(err, shop.ErrEmptyCart) {
		writeError(w, http.StatusConflict, "cart is empty")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.cacheStatus(ctx, o.ID, o.Status)
	h.publishCreated(o, items)

	writeJSON(w, http.StatusCreated, toOrderResp(o, items))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, orderID)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items, err := h.Orders.Items(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o, items))
}

// getStatus: fast path dari cache redis, fallback ke DB.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Orders.Get(ctx, orderID)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusOK, map[string]any{"status": o.Status})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	st := shop.Status(r.URL.Query().Get("status"))
	if st == "" {
		st = shop.StatusNew
	}
	if !st.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListByStatus(ctx, st, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]orderResp, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResp(o, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) accept(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, shop.StatusAccepted, h.Orders.Accept)
}

func (h *OrdersHandler) decline(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, shop.StatusDeclined, h.Orders.Decline)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, shop.StatusCancelled, h.Orders.Cancel)
}

func (h *OrdersHandler) doTransition(w http.ResponseWriter, r *http.Request, to shop.Status, op func(context.Context, string) error) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := op(ctx, orderID)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if errors.Is(err, shop.ErrAlreadyProcessed) {
		// guard penting: re-apply decline = restock dobel
		writeError(w, http.StatusConflict, "already processed")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.cacheStatus(ctx, orderID, to)
	h.publishStatus(ctx, orderID, to)

	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": to})
}

func (h *OrdersHandler) adjustLine(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	productID := chi.URLParam(r, "productID")

	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "missing delta")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Orders.AdjustLine(ctx, orderID, productID, req.Delta)
	if errors.Is(err, shop.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, st shop.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, st), redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishCreated(o shop.Order, items []shop.OrderItem) {
	if h.ProducerCreate == nil {
		return
	}
	lines := make([]shop.LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, shop.LineItem{ProductID: it.ProductID, Title: it.Title, PriceCents: it.PriceCents, Qty: it.Qty})
	}
	ev := shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     shop.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(shop.OrderCreatedPayload{
			OrderID:    o.ID,
			UserID:     o.UserID,
			TgUsername: o.TgUsername,
			TgName:     o.TgName,
			PayMethod:  o.PayMethod,
			Items:      lines,
			TotalCents: o.TotalCents,
		}),
	}
	h.ProducerCreate.Publish(shop.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishStatus(ctx context.Context, orderID string, to shop.Status) {
	if h.ProducerStatus == nil {
		return
	}
	var userID int64
	if o, err := h.Orders.Get(ctx, orderID); err == nil {
		userID = o.UserID
	}
	ev := shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     shop.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(shop.OrderStatusPayload{
			OrderID:    orderID,
			UserID:     userID,
			FromStatus: shop.StatusNew,
			ToStatus:   to,
		}),
	}
	h.ProducerStatus.Publish(shop.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func toOrderResp(o shop.Order, items []shop.OrderItem) orderResp {
	out := orderResp{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		TotalCents: o.TotalCents,
		Name:       o.Name,
		Phone:      o.Phone,
		Address:    o.Address,
		PayMethod:  o.PayMethod,
		TgUsername: o.TgUsername,
		TgName:     o.TgName,
		CreatedAt:  o.CreatedAt,
	}
	for _, it := range items {
		out.Items = append(out.Items, orderItemResp{ProductID: it.ProductID, Title: it.Title, PriceCents: it.PriceCents, Qty: it.Qty})
	}
	return out
}
