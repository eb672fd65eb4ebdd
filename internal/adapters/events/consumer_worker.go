package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/contracts"
)

type Message struct {
	Topic   string
	Key     string
	Payload []byte
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

// EventHandler is satisfied by application.Service.
type EventHandler interface {
	HandleCanonicalEvent(ctx context.Context, envelope contracts.EventEnvelope) error
}

type ConsumerWorker struct {
	logger   *slog.Logger
	consumer Consumer
	handler  EventHandler
	interval time.Duration
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, handler EventHandler, interval time.Duration) *ConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ConsumerWorker{
		logger: logger, consumer: consumer, handler: handler, interval: interval,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ConsumerWorker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, 50)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		var envelope contracts.EventEnvelope
		if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
			w.logger.WarnContext(ctx, "dropping undecodable event",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "decode",
				"outcome", "failure",
				"topic", msg.Topic,
				"error", err,
			)
			continue
		}
		if err := w.handler.HandleCanonicalEvent(ctx, envelope); err != nil {
			w.logger.WarnContext(ctx, "failed to handle event",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "handle",
				"outcome", "failure",
				"topic", msg.Topic,
				"event_id", envelope.EventID,
				"event_type", envelope.EventType,
				"error", err,
			)
		}
	}
	return nil
}
