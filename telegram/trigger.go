package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
	"github.com/ragmesh/ragmesh/pipeline"
)

// PollerOptions configure the trigger loop.
type PollerOptions struct {
	// PollTimeout is the getUpdates long-poll window. Defaults to 30s.
	PollTimeout time.Duration

	// Typing shows the typing indicator as soon as a message is queued,
	// before any reply exists.
	Typing bool

	// Audit, when set, receives every inbound message.
	Audit *AuditLog

	// Logger receives poll events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Poller is the Telegram trigger: a single-threaded long-poll loop that
// normalizes inbound messages into trigger records.
type Poller struct {
	client  *Client
	trigger *pipeline.Trigger
	opts    PollerOptions
	offset  int64
}

// NewPoller creates a poller feeding the given trigger.
func NewPoller(client *Client, trigger *pipeline.Trigger, optFns ...func(o *PollerOptions)) *Poller {
	opts := PollerOptions{PollTimeout: 30 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Poller{client: client, trigger: trigger, opts: opts}
}

// RecordFromUpdate normalizes one update into a trigger record. The second
// return is false when the update carries nothing to answer (edits, joins,
// messages without text or caption). The raw update is preserved as the
// record payload.
func RecordFromUpdate(u Update) (core.Record, bool) {
	msg := u.Message
	if msg == nil {
		return core.Record{}, false
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return core.Record{}, false
	}
	rec := core.Record{
		Source:      core.SourceTelegram,
		Correlation: core.Correlation{ChatID: msg.Chat.ID},
		Text:        text,
	}
	if msg.Date > 0 {
		rec.Timestamp = time.Unix(msg.Date, 0).UTC()
	}
	if msg.Document != nil {
		rec.Attachments = append(rec.Attachments, core.Attachment{
			Name:     msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Size:     msg.Document.FileSize,
		})
	}
	if payload, err := json.Marshal(u); err == nil {
		rec.Payload = payload
	}
	return rec, true
}

// PollOnce performs one getUpdates pass, queueing a trigger per answerable
// message, and returns how many were queued. The offset advances past a
// queueable update only once its record is on the queue; a failed append
// leaves the offset in place so the next getUpdates redelivers the message
// instead of dropping it. Updates with nothing to answer advance the offset
// immediately.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	updates, err := p.client.GetUpdates(ctx, p.offset, int(p.opts.PollTimeout/time.Second))
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, u := range updates {
		rec, ok := RecordFromUpdate(u)
		if !ok {
			p.advance(u)
			continue
		}
		if p.opts.Audit != nil {
			entry := AuditEntry{ChatID: rec.ChatID, Text: rec.Text, Timestamp: rec.Timestamp}
			if u.Message.From != nil {
				entry.From = u.Message.From.Username
			}
			if err := p.opts.Audit.Log(entry); err != nil {
				p.opts.Logger.Warn("audit log write failed", "error", err)
			}
		}
		if p.opts.Typing {
			if err := p.client.SendTyping(ctx, rec.ChatID); err != nil {
				p.opts.Logger.Warn("typing indicator failed", "chat_id", rec.ChatID, "error", err)
			}
		}
		if _, err := p.trigger.Fire(ctx, rec); err != nil {
			return queued, err
		}
		p.advance(u)
		queued++
	}
	return queued, nil
}

func (p *Poller) advance(u Update) {
	if u.UpdateID >= p.offset {
		p.offset = u.UpdateID + 1
	}
}

// Run long-polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := p.PollOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.opts.Logger.Error("poll failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		if n > 0 {
			p.opts.Logger.Info("triggers queued", "count", n)
		}
	}
}
