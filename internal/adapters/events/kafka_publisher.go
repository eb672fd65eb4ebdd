package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/contracts"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes envelopes keyed by partition key so every event of
// one submission lands on the same partition in order.
type KafkaPublisher struct {
	writer         *kafka.Writer
	topicByEvent   map[string]string
	analyticsTopic string
	dlqTopic       string
}

func NewKafkaPublisher(brokers []string, topicByEvent map[string]string, analyticsTopic, dlqTopic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
		},
		topicByEvent:   topicByEvent,
		analyticsTopic: analyticsTopic,
		dlqTopic:       dlqTopic,
	}, nil
}

func (p *KafkaPublisher) PublishDomain(ctx context.Context, event contracts.EventEnvelope) error {
	return p.write(ctx, p.topicFor(event.EventType), event.PartitionKey, event)
}

func (p *KafkaPublisher) PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error {
	topic := p.analyticsTopic
	if topic == "" {
		topic = p.topicFor(event.EventType)
	}
	return p.write(ctx, topic, event.PartitionKey, event)
}

func (p *KafkaPublisher) PublishDLQ(ctx context.Context, record contracts.DLQRecord) error {
	topic := p.dlqTopic
	if topic == "" {
		topic = record.DLQTopic
	}
	return p.write(ctx, topic, record.OriginalEvent.PartitionKey, record)
}

func (p *KafkaPublisher) topicFor(eventType string) string {
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		return mapped
	}
	return eventType
}

func (p *KafkaPublisher) write(ctx context.Context, topic, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
