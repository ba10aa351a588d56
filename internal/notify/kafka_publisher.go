package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/staybook/staybook/internal/logger"
	"github.com/staybook/staybook/internal/retry"
)

// KafkaPublisher publishes events to a Kafka/Redpanda topic keyed by
// booking id so per-booking ordering is preserved.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    *logger.Logger
}

// NewKafkaPublisher creates a Kafka publisher
func NewKafkaPublisher(brokers []string, clientID, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &KafkaPublisher{
		client: client,
		topic:  topic,
		log:    logger.Get(),
	}, nil
}

// Publish sends the event, retrying transient broker failures briefly.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.BookingID),
		Value: value,
	}

	cfg := &retry.Config{
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
	err = retry.Do(ctx, cfg, func(ctx context.Context) error {
		return p.client.ProduceSync(ctx, record).FirstErr()
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s for booking %s: %w", event.Type, event.BookingID, err)
	}
	return nil
}

// Close flushes and closes the client
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.log.Warn("kafka flush on close failed", zap.Error(err))
	}
	p.client.Close()
}
