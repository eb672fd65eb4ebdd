package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
)

var ErrQueueFull = errors.New("notification queue full")

// AsyncNotifier decouples delivery from the caller. Notify never blocks; when
// the queue is full the message is dropped and ErrQueueFull returned.
type AsyncNotifier struct {
	logger  *slog.Logger
	next    ports.Notifier
	queue   chan ports.Notification
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncNotifier(logger *slog.Logger, next ports.Notifier, size int, timeout time.Duration) *AsyncNotifier {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncNotifier{logger: logger, next: next, queue: make(chan ports.Notification, size), timeout: timeout}
}

func (a *AsyncNotifier) Notify(_ context.Context, n ports.Notification) error {
	select {
	case a.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued notifications until ctx is done, then drains what is
// left with a fresh deadline.
func (a *AsyncNotifier) Run(ctx context.Context) error {
	a.wg.Add(1)
	defer a.wg.Done()
	for {
		select {
		case n := <-a.queue:
			a.deliver(ctx, n)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
			defer cancel()
			for {
				select {
				case n := <-a.queue:
					a.deliver(drainCtx, n)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

func (a *AsyncNotifier) deliver(ctx context.Context, n ports.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.next.Notify(sendCtx, n); err != nil {
		a.logger.WarnContext(ctx, "notification delivery failed",
			"module", "notify.async",
			"layer", "adapter",
			"operation", "deliver",
			"outcome", "failure",
			"kind", n.Kind,
			"recipient_id", n.RecipientID,
			"error", err,
		)
	}
}

// Wait blocks until Run has returned.
func (a *AsyncNotifier) Wait() {
	a.wg.Wait()
}
