package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> {"status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event di notifier: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Mirror preferensi bahasa user: lang:{user_id} -> "ru"|"de"
	KeyUserLang = "lang:%d"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLUserLang    = 7 * 24 * time.Hour
)
