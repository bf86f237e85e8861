package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/kafka"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/redisx"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/shop"
)

// Service mengubah event order/cart jadi feed notifikasi operator.
// Pengiriman chat-nya urusan layer presentasi; di sini cukup log terstruktur
// yang bisa di-tail/diteruskan.
type Service struct {
	Redis    *redis.Client
	Log      *slog.Logger
	Consumer string // nama group, dipakai di key dedup
}

// HandleEvent dipasang sebagai handler consumer utk semua topic shop.*.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup by event_id: redelivery tidak boleh jadi notifikasi dobel
	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, s.Consumer, env.EventID)
		if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	switch env.EventType {
	case shop.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[shop.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.Log.Info("new order",
			"order_id", p.OrderID,
			"user_id", p.UserID,
			"tg_username", p.TgUsername,
			"items", len(p.Items),
			"total_cents", p.TotalCents,
			"pay_method", p.PayMethod,
		)

	case shop.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[shop.OrderStatusPayload](env.Payload)
		if err != nil {
			return err
		}
		s.Log.Info("order status changed",
			"order_id", p.OrderID,
			"user_id", p.UserID,
			"to", p.ToStatus,
		)

	case shop.EventCartExpired:
		p, err := kafkax.UnwrapPayload[shop.CartExpiredPayload](env.Payload)
		if err != nil {
			return err
		}
		s.Log.Info("cart expired",
			"user_id", p.UserID,
			"returned_qty", p.ReturnedQty,
		)

	default:
		// event asing: skip, jangan bikin consumer macet
	}
	return nil
}
