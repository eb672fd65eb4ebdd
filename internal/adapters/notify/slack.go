package notify

import (
	"context"
	"fmt"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/slack-go/slack"
)

// SlackNotifier posts every notification to one operations channel, tagged
// with the recipient. Per-user delivery belongs to the messaging front end.
type SlackNotifier struct {
	api     *slack.Client
	channel string
}

func NewSlackNotifier(token, channel string, opts ...slack.Option) *SlackNotifier {
	return &SlackNotifier{api: slack.New(token, opts...), channel: channel}
}

func (n *SlackNotifier) Notify(ctx context.Context, msg ports.Notification) error {
	text := fmt.Sprintf("[%s] %s: %s", msg.Kind, msg.RecipientID, msg.Text)
	_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}
