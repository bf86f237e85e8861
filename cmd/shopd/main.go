package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/config"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/httpx"
	kafkax "github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/kafka"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/logging"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/postgres"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/redisx"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/settings"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/shop"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/sweeper"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("db migrate", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers (satu per topic)
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicOrderStatus, 1024)
	pStatus.Start(ctx)
	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicCartExpired, 1024)
	pExpired.Start(ctx)

	// Repos
	catalog := &shop.CatalogRepo{DB: db}
	cart := &shop.CartRepo{DB: db}
	orders := &shop.OrderRepo{DB: db}
	sets := &settings.Repo{DB: db}
	langs := settings.NewLangCache(sets, rdb, cfg.DefaultLang)

	// Sweeper: 60s loop, cart idle 30 menit balik ke stok
	sw := &sweeper.Sweeper{
		Store:    cart,
		Producer: pExpired,
		Service:  cfg.ServiceName + "-sweeper",
		Log:      log,
	}
	go sw.Run(ctx)

	// HTTP API
	router := httpx.NewRouter()
	(&httpx.CartHandler{Cart: cart}).Register(router)
	(&httpx.CatalogHandler{Catalog: catalog, Operators: cfg.Operators}).Register(router)
	(&httpx.OrdersHandler{
		Orders:         orders,
		Redis:          rdb,
		ProducerCreate: pCreated,
		ProducerStatus: pStatus,
		Operators:      cfg.Operators,
		Service:        cfg.ServiceName,
	}).Register(router)
	(&httpx.PrefsHandler{Lang: langs}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// cancel menghentikan sweeper & menyuruh producer flush lalu berhenti
	cancel()
	pCreated.WaitClosed()
	pStatus.WaitClosed()
	pExpired.WaitClosed()
}
