package shop

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventCartExpired        = "CartExpired"
)

type Envelope struct {
	EventID       string          `json:"event_id"`   // uuid
	EventType     string          `json:"event_type"` // salah satu const di atas
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"` // RFC3339
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id / user_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type LineItem struct {
	ProductID  string `json:"product_id"`
	Title      string `json:"title"`
	PriceCents int    `json:"price_cents"`
	Qty        int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	UserID     int64      `json:"user_id"`
	TgUsername string     `json:"tg_username,omitempty"`
	TgName     string     `json:"tg_name,omitempty"`
	PayMethod  string     `json:"pay_method,omitempty"`
	Items      []LineItem `json:"items"`
	TotalCents int        `json:"total_cents"`
}

type OrderStatusPayload struct {
	OrderID    string `json:"order_id"`
	UserID     int64  `json:"user_id"`
	FromStatus Status `json:"from_status"`
	ToStatus   Status `json:"to_status"`
}

type CartExpiredPayload struct {
	UserID      int64 `json:"user_id"`
	ReturnedQty int   `json:"returned_qty"`
}
