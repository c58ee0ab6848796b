package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ariefcatur/go-flower-orders.git/internal/config"
	kafkax "github.com/ariefcatur/go-flower-orders.git/internal/kafka"
	"github.com/ariefcatur/go-flower-orders.git/internal/notifier"
	"github.com/ariefcatur/go-flower-orders.git/internal/orders"
	"github.com/ariefcatur/go-flower-orders.git/internal/redisx"
	"github.com/joho/godotenv"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Service
	svc := &notifier.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	// Consumers: created & delivered (dua topic berbeda)
	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cCreated := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderCreated, workers)
	cDelivered := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderDelivered, workers)

	start := func(name string, c *kafkax.Consumer) {
		go func() {
			log.Printf("notifier consumer started: group=%s topic=%s workers=%d", group, name, workers)
			if err := c.Start(ctx, svc.HandleOrderEvent); err != nil {
				log.Printf("consumer %s exit: %v", name, err)
				cancel()
			}
		}()
	}
	start(orders.TopicOrderCreated, cCreated)
	start(orders.TopicOrderDelivered, cDelivered)

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumers...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
