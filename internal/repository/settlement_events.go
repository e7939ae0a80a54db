package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kshitij0O7/bitquery-x402/internal/domain/models"
	drepo "github.com/Kshitij0O7/bitquery-x402/internal/domain/repository"
	"github.com/Kshitij0O7/bitquery-x402/pkg/logger"
)

// messageProducer is the subset of kafka.Producer used here.
type messageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaSettlementPublisher writes settlement events to a Kafka topic keyed
// by payer address.
type KafkaSettlementPublisher struct {
	producer messageProducer
	topic    string
}

func NewKafkaSettlementPublisher(producer messageProducer, topic string) *KafkaSettlementPublisher {
	return &KafkaSettlementPublisher{producer: producer, topic: topic}
}

func (p *KafkaSettlementPublisher) Publish(ctx context.Context, ev *models.SettlementEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(strings.ToLower(ev.Payer)), ev); err != nil {
		return fmt.Errorf("publish settlement %s: %w", ev.Transaction, err)
	}
	return nil
}

func (p *KafkaSettlementPublisher) Close() error {
	return p.producer.Close()
}

// LogSettlementPublisher logs settlement events when no broker is configured.
type LogSettlementPublisher struct {
	log *logger.Logger
}

func NewLogSettlementPublisher(l *logger.Logger) *LogSettlementPublisher {
	return &LogSettlementPublisher{log: l}
}

func (p *LogSettlementPublisher) Publish(_ context.Context, ev *models.SettlementEvent) error {
	p.log.Info("payment settled",
		logger.String("route", ev.Route),
		logger.String("network", ev.Network),
		logger.String("payer", ev.Payer),
		logger.String("transaction", ev.Transaction),
		logger.String("amount", ev.Amount),
	)
	return nil
}

func (p *LogSettlementPublisher) Close() error { return nil }

var (
	_ drepo.SettlementPublisher = (*KafkaSettlementPublisher)(nil)
	_ drepo.SettlementPublisher = (*LogSettlementPublisher)(nil)
)
