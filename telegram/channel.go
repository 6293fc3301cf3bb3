package telegram

import (
	"context"
	"errors"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
)

// ChannelOptions configure the delivery channel.
type ChannelOptions struct {
	// Typing shows the typing indicator right before the send.
	Typing bool

	// Logger receives delivery events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Channel delivers generated replies back into Telegram chats.
type Channel struct {
	client *Client
	opts   ChannelOptions
}

var _ core.DeliveryChannel = (*Channel)(nil)

// NewChannel creates a Telegram delivery channel.
func NewChannel(client *Client, optFns ...func(o *ChannelOptions)) *Channel {
	opts := ChannelOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Channel{client: client, opts: opts}
}

// Name implements core.DeliveryChannel.
func (c *Channel) Name() string { return core.SourceTelegram }

// Deliver implements core.DeliveryChannel. Telegram has no new-message
// fallback: without a chat id there is no destination at all.
func (c *Channel) Deliver(ctx context.Context, corr core.Correlation, text string) error {
	if corr.ChatID == 0 {
		return errors.New("record has no chat_id")
	}
	if c.opts.Typing {
		if err := c.client.SendTyping(ctx, corr.ChatID); err != nil {
			c.opts.Logger.Warn("typing indicator failed", "chat_id", corr.ChatID, "error", err)
		}
	}
	if err := c.client.SendMessage(ctx, corr.ChatID, text); err != nil {
		return err
	}
	c.opts.Logger.Info("reply delivered", "channel", c.Name(), "chat_id", corr.ChatID)
	return nil
}
