package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/redisx"
)

// LangCache: preferensi bahasa per user. Dulu map global di level modul;
// sekarang objek eksplisit yang di-inject, supaya tiap test bisa punya
// instance sendiri. Invalidasi hanya lewat Set.
type LangCache struct {
	mu    sync.RWMutex
	langs map[int64]string

	store Store
	rdb   *redis.Client // mirror opsional, best effort; boleh nil
	def   string
}

func NewLangCache(store Store, rdb *redis.Client, defaultLang string) *LangCache {
	return &LangCache{
		langs: make(map[int64]string),
		store: store,
		rdb:   rdb,
		def:   defaultLang,
	}
}

func langKey(userID int64) string { return fmt.Sprintf("lang:%d", userID) }

// Get: memory -> redis -> settings -> default. Hasil dari tier bawah
// diisi balik ke memory.
func (c *LangCache) Get(ctx context.Context, userID int64) string {
	c.mu.RLock()
	if lg, ok := c.langs[userID]; ok {
		c.mu.RUnlock()
		return lg
	}
	c.mu.RUnlock()

	if c.rdb != nil {
		if lg, err := c.rdb.Get(ctx, fmt.Sprintf(redisx.KeyUserLang, userID)).Result(); err == nil && lg != "" {
			c.fill(userID, lg)
			return lg
		}
	}

	lg, err := c.store.Get(ctx, langKey(userID))
	if err != nil || lg == "" {
		return c.def
	}
	c.fill(userID, lg)
	return lg
}

// Set menulis ke settings lalu meng-update cache (write-through).
func (c *LangCache) Set(ctx context.Context, userID int64, lang string) error {
	if err := c.store.Set(ctx, langKey(userID), lang); err != nil {
		return err
	}
	c.fill(userID, lang)
	if c.rdb != nil {
		_ = c.rdb.Set(ctx, fmt.Sprintf(redisx.KeyUserLang, userID), lang, redisx.TTLUserLang).Err()
	}
	return nil
}

func (c *LangCache) fill(userID int64, lang string) {
	c.mu.Lock()
	c.langs[userID] = lang
	c.mu.Unlock()
}
