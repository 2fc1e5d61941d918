package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits an order event for the kitchen display on every
// accepted order. The message key is the order ID.
type KafkaPublisher struct {
	w     messageWriter
	topic string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{w: w, topic: topic}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// PlacedEvent is the JSON value written to the topic.
type PlacedEvent struct {
	OrderID  string    `json:"orderId"`
	PlacedAt time.Time `json:"placedAt"`
	Order    Order     `json:"order"`
}

func (p *KafkaPublisher) Notify(ctx context.Context, n Notification) error {
	value, err := json.Marshal(PlacedEvent{OrderID: n.OrderID, PlacedAt: n.PlacedAt, Order: n.Order})
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.OrderID),
		Value: value,
		Time:  n.PlacedAt,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
