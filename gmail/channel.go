package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
)

// ChannelOptions configure the delivery channel.
type ChannelOptions struct {
	// From is the sender address put on outgoing mail. Optional; Gmail
	// fills in the authenticated account when absent.
	From string

	// Logger receives delivery events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Channel delivers generated replies by mail. A record whose correlation
// names both a message id and a thread id gets a threaded reply; otherwise
// a fresh email is composed to the correlation's address.
type Channel struct {
	client *Client
	opts   ChannelOptions
}

var _ core.DeliveryChannel = (*Channel)(nil)

// NewChannel creates a Gmail delivery channel.
func NewChannel(client *Client, optFns ...func(o *ChannelOptions)) *Channel {
	opts := ChannelOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Channel{client: client, opts: opts}
}

// Name implements core.DeliveryChannel.
func (c *Channel) Name() string { return core.SourceGmail }

// Deliver implements core.DeliveryChannel.
func (c *Channel) Deliver(ctx context.Context, corr core.Correlation, text string) error {
	if corr.To == "" {
		return errors.New("record has no destination address")
	}

	threaded := corr.GmailMessageID != "" && corr.GmailThreadID != ""
	subject := corr.Subject
	if threaded && !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var b strings.Builder
	if c.opts.From != "" {
		fmt.Fprintf(&b, "From: %s\r\n", c.opts.From)
	}
	fmt.Fprintf(&b, "To: %s\r\n", corr.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if threaded {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", corr.GmailMessageID)
		fmt.Fprintf(&b, "References: %s\r\n", corr.GmailMessageID)
	}
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(text)

	raw := base64.URLEncoding.EncodeToString([]byte(b.String()))
	threadID := ""
	if threaded {
		threadID = corr.GmailThreadID
	}
	id, err := c.client.SendRaw(ctx, raw, threadID)
	if err != nil {
		return err
	}
	c.opts.Logger.Info("reply delivered",
		"channel", c.Name(), "to", corr.To, "threaded", threaded, "id", id)
	return nil
}
