package notify

import (
	"context"
	"log/slog"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
)

type LoggingNotifier struct {
	logger *slog.Logger
}

func NewLoggingNotifier(logger *slog.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

func (n *LoggingNotifier) Notify(ctx context.Context, msg ports.Notification) error {
	n.logger.InfoContext(ctx, "notification",
		"module", "notify.logging",
		"layer", "adapter",
		"operation", "notify",
		"outcome", "success",
		"kind", msg.Kind,
		"recipient_id", msg.RecipientID,
		"text", msg.Text,
	)
	return nil
}
