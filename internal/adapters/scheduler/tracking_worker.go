package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/application"
)

// CycleRunner is satisfied by application.Service.
type CycleRunner interface {
	RunTrackingCycle(ctx context.Context) (application.CycleReport, error)
}

// TrackingWorker triggers a tracking cycle on a fixed interval. A cycle that
// overruns the interval delays the next tick rather than overlapping it.
type TrackingWorker struct {
	logger   *slog.Logger
	runner   CycleRunner
	interval time.Duration
	timeout  time.Duration
}

func NewTrackingWorker(logger *slog.Logger, runner CycleRunner, interval, timeout time.Duration) *TrackingWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &TrackingWorker{logger: logger, runner: runner, interval: interval, timeout: timeout}
}

func (w *TrackingWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *TrackingWorker) runOnce(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if _, err := w.runner.RunTrackingCycle(cycleCtx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "tracking cycle failed",
			"module", "scheduler.tracking_worker",
			"layer", "adapter",
			"operation", "run_tracking_cycle",
			"outcome", "failure",
			"error", err,
		)
	}
}
