package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	TopicOrderCompleted   = "digitalcart.order.completed"
	TopicDownloadRedeemed = "digitalcart.download.redeemed"
	TopicCartRecovered    = "digitalcart.cart.recovered"
)

type Event struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, data any) error
	Close()
}

func New(data any, topic string) Event {
	return Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type KafkaPublisher struct {
	client *kgo.Client
}

func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("kgo.NewClient: %w", err)
	}
	return &KafkaPublisher{client: client}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, data any) error {
	payload, err := json.Marshal(New(data, topic))
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kgo.ProduceSync: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// NopPublisher drops events; it is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, topic, key string, _ any) error {
	log.Printf("[EVENTS] [DEBUG] dropped %s key=%s (no brokers)", topic, key)
	return nil
}

func (NopPublisher) Close() {}
