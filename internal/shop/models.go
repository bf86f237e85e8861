package shop

import "time"

type Product struct {
	ID          string
	Category    string
	Title       string
	PriceCents  int
	Stock       int
	PhotoFileID string
	CreatedAt   time.Time
}

// CartItem adalah satu baris reservasi: qty sudah dipotong dari stok produk.
type CartItem struct {
	UserID     int64
	ProductID  string
	Title      string
	PriceCents int
	Qty        int
	TouchedAt  time.Time
}

// Contact: data checkout yang diketik pembeli, dibekukan ke order.
type Contact struct {
	Name      string
	Phone     string
	Address   string
	PayMethod string
}

// Buyer: metadata akun platform (username/display name) untuk tampilan operator.
type Buyer struct {
	Username    string
	DisplayName string
}

type Order struct {
	ID         string
	UserID     int64
	Name       string
	Phone      string
	Address    string
	PayMethod  string
	TgUsername string
	TgName     string
	TotalCents int
	Status     Status // lihat status.go
	CreatedAt  time.Time
}

// OrderItem membekukan title & price saat order dibuat; katalog boleh berubah,
// histori order tidak ikut berubah.
type OrderItem struct {
	OrderID    string
	ProductID  string
	Title      string
	PriceCents int
	Qty        int
}

type Setting struct {
	Key   string
	Value string
}
