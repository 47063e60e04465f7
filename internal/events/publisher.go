// Package events publishes shipment lifecycle events for downstream consumers
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types
const (
	TypeShipmentSent          = "shipment.sent"
	TypeShipmentFailed        = "shipment.failed"
	TypeShipmentStatusChanged = "shipment.status_changed"
	TypeShipmentIDReplaced    = "shipment.id_replaced"
)

// ShipmentEvent is the message value published for every shipment change
type ShipmentEvent struct {
	Type           string    `json:"type"`
	Shop           string    `json:"shop"`
	ShopifyOrderID string    `json:"shopify_order_id"`
	OrderNumber    string    `json:"order_number,omitempty"`
	ShipmentID     string    `json:"shipment_id,omitempty"`
	IsTemporaryID  bool      `json:"is_temporary_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Details        string    `json:"details,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher sends shipment events
type Publisher interface {
	Publish(ctx context.Context, event ShipmentEvent) error
	Close() error
}

// Writer is the subset of *kafka.Writer the producer needs
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes events keyed by shop and order so one order's
// events stay on one partition
type KafkaProducer struct {
	writer Writer
	logger *zap.Logger
}

// NewKafkaProducer creates a producer writing to topic on brokers
func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
	return NewKafkaProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}, logger)
}

// NewKafkaProducerWithWriter wraps an existing writer
func NewKafkaProducerWithWriter(w Writer, logger *zap.Logger) *KafkaProducer {
	return &KafkaProducer{writer: w, logger: logger}
}

func (p *KafkaProducer) Publish(ctx context.Context, event ShipmentEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Shop + "/" + event.ShopifyOrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	p.logger.Debug("Published shipment event",
		zap.String("type", event.Type),
		zap.String("shop", event.Shop),
		zap.String("order_id", event.ShopifyOrderID),
	)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events; used when no brokers are configured
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event ShipmentEvent) error { return nil }
func (NopPublisher) Close() error                                           { return nil }

var (
	_ Publisher = (*KafkaProducer)(nil)
	_ Publisher = NopPublisher{}
)
