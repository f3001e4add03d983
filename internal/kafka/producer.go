package kafka

import (
	"context"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/logx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer writes one topic from a buffered inbox so Publish never blocks on
// the broker.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *zap.Logger
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     logx.OrNop(log).With(zap.String("topic", topic)),
	}
}

func (p *Producer) Topic() string { return p.w.Topic }

// Start runs the write loop until Close, then flushes what is left.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", zap.Error(err))
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka publish failed",
			zap.ByteString("key", m.Key),
			zap.Error(err))
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close stops accepting messages; the loop flushes the inbox and exits.
func (p *Producer) Close() { close(p.inbox) }

// WaitClosed blocks until the flush after Close has finished.
func (p *Producer) WaitClosed() { <-p.closeCh }
