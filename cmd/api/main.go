package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-flower-orders.git/internal/cache"
	"github.com/ariefcatur/go-flower-orders.git/internal/config"
	"github.com/ariefcatur/go-flower-orders.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-flower-orders.git/internal/kafka"
	"github.com/ariefcatur/go-flower-orders.git/internal/orders"
	"github.com/ariefcatur/go-flower-orders.git/internal/postgres"
	"github.com/ariefcatur/go-flower-orders.git/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	c := cache.New(rdb)

	// Kafka producers
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pDelivered := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderDelivered, 1024)
	pDelivered.Start(ctx)

	// Repo, engine & handlers
	repo := &orders.Repo{DB: db}
	engine := &orders.Engine{
		Store:             repo,
		Cache:             c,
		ProducerCreated:   pCreated,
		ProducerDelivered: pDelivered,
		Service:           cfg.ServiceName,
	}
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Engine: engine, Repo: repo, Cache: c}).Register(router)
	(&httpx.FlowersHandler{Repo: repo, Cache: c}).Register(router)
	(&httpx.CustomersHandler{Repo: repo, Cache: c}).Register(router)
	(&httpx.StockHandler{Ledger: &orders.Ledger{DB: db}, Cache: c}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close() // tutup inbox -> flush & close writer
	pDelivered.Close()
	cancel() // stop producer loop
	pCreated.WaitClosed()
	pDelivered.WaitClosed()
}
