// Package events announces committed trades to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// TradeEvent is emitted once per committed buy or sell.
type TradeEvent struct {
	Reference   string          `json:"reference"`
	UserID      uint            `json:"user_id"`
	Type        string          `json:"type"`
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	NewBalance  decimal.Decimal `json:"new_balance"`
	Timestamp   time.Time       `json:"timestamp"`
}

type Publisher interface {
	PublishTrade(ctx context.Context, event TradeEvent) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishTrade(context.Context, TradeEvent) error { return nil }
func (NoopPublisher) Close() error                                 { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes trade events keyed by user id, so one user's trades
// stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) PublishTrade(ctx context.Context, event TradeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal trade event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", event.UserID)),
		Value: value,
		Time:  event.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.WithFields(logger.Fields{
			"component": "events",
			"topic":     p.topic,
			"reference": event.Reference,
		}).WithError(err).Error("Failed to publish trade event")
		return fmt.Errorf("publish trade event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewPublisherFromConfig returns a Kafka publisher when brokers are configured,
// a NoopPublisher otherwise.
func NewPublisherFromConfig(cfg Config) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.WithField("component", "events").Info("KAFKA_BROKERS not set, trade events disabled")
		return NoopPublisher{}
	}
	logger.WithFields(logger.Fields{
		"component": "events",
		"brokers":   cfg.KafkaBrokers,
		"topic":     cfg.TradesTopic,
	}).Info("Publishing trade events to kafka")
	return NewKafkaPublisher(cfg.KafkaBrokers, cfg.TradesTopic)
}
