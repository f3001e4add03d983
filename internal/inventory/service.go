package inventory

import (
	"context"
	"fmt"

	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"github.com/ariefcatur/go-realtime-pos/internal/redisx"
	"github.com/ariefcatur/go-realtime-pos/internal/sales"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// CatalogInvalidator drops cached catalog searches. *catalog.SearchCache
// implements it.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// Service reacts to stock movements published by the ledger API. Every
// replica of the API shares the Redis search cache, so one invalidation per
// event makes new stock visible to all terminals.
type Service struct {
	Catalog     CatalogInvalidator
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

// HandleStockEvent is installed as the consumer handler.
func (s *Service) HandleStockEvent(ctx context.Context, m kafkago.Message) error {
	log := logx.OrNop(s.Log)

	// 1) decode envelope
	var env sales.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		log.Warn("dropping undecodable message", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if !stockEvent(env.EventType) {
		return nil
	}

	// 2) dedup on event_id
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	first, err := redisx.FirstSeen(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		log.Debug("duplicate event", zap.String("event_id", env.EventID))
		return nil
	}

	// 3) stock moved: cached searches are stale
	n, err := s.Catalog.Invalidate(ctx)
	if err != nil {
		// let the message be redelivered
		_ = s.Redis.Del(ctx, dkey).Err()
		return fmt.Errorf("invalidate catalog: %w", err)
	}

	log.Info("stock event applied",
		zap.String("event_type", env.EventType),
		zap.String("correlation_id", env.CorrelationID),
		zap.String("trace_id", env.TraceID),
		zap.Int64("cache_keys_dropped", n))
	return nil
}

func stockEvent(t string) bool {
	switch t {
	case sales.EventSaleCompleted, sales.EventSaleAnnulled, sales.EventStockAdjusted:
		return true
	}
	return false
}
