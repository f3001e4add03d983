package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/config"
	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"github.com/ariefcatur/go-realtime-pos/internal/redisx"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	name := cfg.ServiceName + "-inventory"
	logger, err := logx.New(name, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &inventory.Service{
		Catalog:     catalog.NewSearchCache(rdb, cfg.CatalogCacheTTL),
		Redis:       rdb,
		ServiceName: name,
		Log:         logger,
	}

	// Consumer over every stock topic
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, sales.StockTopics, cfg.InventoryWorkers, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("inventory consumer started",
			zap.String("group", cfg.InventoryGroup),
			zap.Strings("topics", sales.StockTopics),
			zap.Int("workers", cfg.InventoryWorkers))
		if err := cons.Start(ctx, svc.HandleStockEvent); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	<-done
}
