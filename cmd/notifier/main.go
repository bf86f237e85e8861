package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/config"
	kafkax "github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/kafka"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/logging"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/notify"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/redisx"
	"github.com/miroslavoliynik70-lang/telegram-shop-bot/internal/shop"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName + "-notifier")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	group := getenv("NOTIFIER_GROUP", "shop-notifier")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), 4)

	svc := &notify.Service{Redis: rdb, Log: log, Consumer: group}

	// satu consumer per topic, semua masuk handler yang sama
	topics := []string{shop.TopicOrderCreated, shop.TopicOrderStatus, shop.TopicCartExpired}
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers, log)
		g.Go(func() error {
			log.Info("consumer started", "group", group, "topic", topic, "workers", workers)
			return cons.Start(gctx, svc.HandleEvent)
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumers")
	case <-gctx.Done():
	}
	cancel()
	if err := g.Wait(); err != nil {
		log.Error("consumer exit", "err", err)
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
