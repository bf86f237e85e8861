package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/kafka"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/shop"
)

const (
	// Interval dan threshold fixed, sengaja tidak configurable.
	SweepInterval = 60 * time.Second
	StaleAfter    = 30 * time.Minute
)

type Store interface {
	StaleCartUsers(ctx context.Context, threshold time.Duration) ([]int64, error)
	ReleaseStaleCart(ctx context.Context, userID int64, cutoff time.Time) (int, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Sweeper: loop tunggal yang mengembalikan cart terbengkalai ke stok.
// Satu instance per deployment; serialisasi per user diserahkan ke locking
// transaksi di Store.
type Sweeper struct {
	Store    Store
	Producer Publisher // boleh nil
	Service  string
	Log      *slog.Logger
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep satu siklus. Gagal release satu user tidak menghentikan sisanya.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-StaleAfter)
	users, err := s.Store.StaleCartUsers(ctx, StaleAfter)
	if err != nil {
		s.Log.Error("stale cart query", "err", err)
		return
	}
	for _, uid := range users {
		released, err := s.Store.ReleaseStaleCart(ctx, uid, cutoff)
		if err != nil {
			s.Log.Error("release stale cart", "user_id", uid, "err", err)
			continue
		}
		if released == 0 {
			continue // cart keburu disentuh lagi atau sudah kosong
		}
		s.Log.Info("cart expired", "user_id", uid, "returned_qty", released)
		s.publishExpired(uid, released)
	}
}

func (s *Sweeper) publishExpired(userID int64, returned int) {
	if s.Producer == nil {
		return
	}
	ev := shop.Envelope{
		EventID:      uuid.NewString(),
		EventType:    shop.EventCartExpired,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     s.Service,
		Payload:      kafkax.MustMarshal(shop.CartExpiredPayload{UserID: userID, ReturnedQty: returned}),
	}
	s.Producer.Publish(
		kafkax.MustMarshal(userID),
		kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventCartExpired)},
	)
}
