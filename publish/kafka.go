package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events keyed by device ID, so all events of a device land on
// the same partition in order.
type Kafka struct {
	writer messageWriter
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("publish: kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("publish: at least one kafka broker is required")
	}

	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}}, nil
}

func (p *Kafka) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(e.DeviceID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "domain", Value: []byte(e.Domain)},
			{Key: "event_id", Value: []byte(e.ID.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish: kafka write for %s failed: %w", e.DeviceID, err)
	}
	return nil
}

func (p *Kafka) Close() error {
	return p.writer.Close()
}
