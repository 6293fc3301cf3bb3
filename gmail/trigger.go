package gmail

import (
	"context"
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
	"github.com/ragmesh/ragmesh/pipeline"
)

// PollerOptions configure the inbox trigger.
type PollerOptions struct {
	// Query selects the messages to turn into triggers. Defaults to
	// unread inbox mail.
	Query string

	// MaxResults bounds one poll. Defaults to 25.
	MaxResults int

	// Interval between polls in Run. Defaults to 60s.
	Interval time.Duration

	// Logger receives poll events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Poller is the Gmail trigger: it polls the mailbox for matching messages,
// queues one trigger per message and marks each as read so it is seen
// exactly once.
type Poller struct {
	client  *Client
	trigger *pipeline.Trigger
	opts    PollerOptions
}

// NewPoller creates a poller feeding the given trigger.
func NewPoller(client *Client, trigger *pipeline.Trigger, optFns ...func(o *PollerOptions)) *Poller {
	opts := PollerOptions{
		Query:      "is:unread in:inbox",
		MaxResults: 25,
		Interval:   time.Minute,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Poller{client: client, trigger: trigger, opts: opts}
}

func decodePart(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

func plainText(part MessagePart) string {
	if part.MimeType == "text/plain" {
		return decodePart(part.Body.Data)
	}
	for _, p := range part.Parts {
		if text := plainText(p); text != "" {
			return text
		}
	}
	return ""
}

// RecordFromMessage normalizes one message into a trigger record. The
// second return is false when the message has no text body to answer. The
// reply-to address is the sender; threading uses the RFC 822 Message-ID
// plus the Gmail thread id.
func RecordFromMessage(msg Message) (core.Record, bool) {
	text := strings.TrimSpace(plainText(msg.Payload))
	if text == "" {
		return core.Record{}, false
	}

	from := msg.Header("From")
	if addr, err := mail.ParseAddress(from); err == nil {
		from = addr.Address
	}
	rec := core.Record{
		Source: core.SourceGmail,
		Correlation: core.Correlation{
			GmailMessageID: msg.Header("Message-ID"),
			GmailThreadID:  msg.ThreadID,
			To:             from,
			Subject:        msg.Header("Subject"),
		},
		Text: text,
	}
	if date, err := mail.ParseDate(msg.Header("Date")); err == nil {
		rec.Timestamp = date.UTC()
	}
	for _, part := range msg.Payload.Parts {
		if part.Filename != "" {
			rec.Attachments = append(rec.Attachments, core.Attachment{
				Name:     part.Filename,
				MimeType: part.MimeType,
				Size:     int64(part.Body.Size),
			})
		}
	}
	return rec, true
}

// PollOnce performs one poll pass and returns how many triggers were
// queued. Every fetched message is marked read, answerable or not, so a
// skipped message is not refetched forever.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	ids, err := p.client.ListMessages(ctx, p.opts.Query, p.opts.MaxResults)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, id := range ids {
		msg, err := p.client.GetMessage(ctx, id)
		if err != nil {
			return queued, err
		}
		rec, ok := RecordFromMessage(msg)
		if ok {
			if _, err := p.trigger.Fire(ctx, rec); err != nil {
				return queued, err
			}
			queued++
		}
		if err := p.client.MarkRead(ctx, id); err != nil {
			p.opts.Logger.Warn("mark read failed", "id", id, "error", err)
		}
	}
	return queued, nil
}

// Run polls on the configured interval until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		n, err := p.PollOnce(ctx)
		if err != nil {
			p.opts.Logger.Error("poll failed, retrying", "error", err)
		} else if n > 0 {
			p.opts.Logger.Info("triggers queued", "count", n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
