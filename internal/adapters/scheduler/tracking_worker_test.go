package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/application"
)

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) RunTrackingCycle(ctx context.Context) (application.CycleReport, error) {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return application.CycleReport{}, context.DeadlineExceeded
	}
	return application.CycleReport{}, nil
}

func TestTrackingWorkerRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	t.Parallel()
	runner := &countingRunner{}
	w := NewTrackingWorker(slog.New(slog.NewJSONHandler(io.Discard, nil)), runner, 10*time.Millisecond, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Run() err = %v, want deadline exceeded", err)
	}
	if got := runner.calls.Load(); got < 2 {
		t.Fatalf("cycles = %d, want at least 2", got)
	}
}

func TestNewTrackingWorkerClampsTimeout(t *testing.T) {
	t.Parallel()
	w := NewTrackingWorker(slog.Default(), &countingRunner{}, time.Minute, time.Hour)
	if w.timeout != time.Minute {
		t.Fatalf("timeout = %s, want interval", w.timeout)
	}
}
