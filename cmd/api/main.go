package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/config"
	"github.com/ariefcatur/go-realtime-pos/internal/httpx"
	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"github.com/ariefcatur/go-realtime-pos/internal/metrics"
	"github.com/ariefcatur/go-realtime-pos/internal/postgres"
	"github.com/ariefcatur/go-realtime-pos/internal/redisx"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logx.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, postgres.Options{DSN: cfg.PostgresDSN, Migrate: true})
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	events := map[string]httpx.Publisher{}
	producers := make([]*kafkax.Producer, 0, len(sales.StockTopics))
	for _, topic := range sales.StockTopics {
		p := kafkax.NewProducer(cfg.KafkaBrokers, topic, 1024, logger)
		p.Start()
		producers = append(producers, p)
		events[topic] = p
	}

	// Repo & handler
	repo := &sales.Repo{DB: db}
	srvMetrics := metrics.NewServerMetrics("sale_ledger", nil)
	router := httpx.NewRouter(srvMetrics)
	sh := &httpx.SalesHandler{
		Store:   repo,
		Catalog: catalog.NewCachedSource(repo, catalog.NewSearchCache(rdb, cfg.CatalogCacheTTL), logger),
		Redis:   rdb,
		Events:  events,
		Metrics: srvMetrics,
		Service: cfg.ServiceName,
		Shop:    cfg.ShopName,
		Log:     logger,
	}
	sh.Register(router)

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// no handler publishes after Shutdown returns
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}
