package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Flusher is satisfied by application.Service.
type Flusher interface {
	FlushOutbox(ctx context.Context) error
}

type OutboxWorker struct {
	logger   *slog.Logger
	flusher  Flusher
	interval time.Duration
}

func NewOutboxWorker(logger *slog.Logger, flusher Flusher, interval time.Duration) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &OutboxWorker{logger: logger, flusher: flusher, interval: interval}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.flusher.FlushOutbox(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "flush_outbox",
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
