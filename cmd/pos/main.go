package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/config"
	"github.com/ariefcatur/go-realtime-pos/internal/ledger"
	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"github.com/ariefcatur/go-realtime-pos/internal/pos"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logx.New("pos-terminal", cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := ledger.New(cfg.LedgerURL, ledger.WithTimeout(cfg.LedgerTimeout), ledger.WithLogger(logger))
	cache := catalog.NewCache(client, logger)
	session := pos.NewSession(client, cache, pos.Actor(cfg.Actor),
		pos.WithSubmitTimeout(cfg.SubmitTimeout),
		pos.WithLogger(logger))

	t := &terminal{
		session: session,
		catalog: cache,
		history: &pos.History{Ledger: client, Log: logger},
		ledger:  client,
		in:      os.Stdin,
		out:     os.Stdout,
	}
	logger.Info("pos terminal ready", zap.String("ledger", cfg.LedgerURL), zap.String("actor", cfg.Actor))
	if err := t.run(ctx); err != nil {
		logger.Fatal("terminal", zap.Error(err))
	}
}
