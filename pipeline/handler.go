package pipeline

import (
	"context"
	"time"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/queue"
)

// HandlerFunc turns one trigger record into reply text. Returning a nil
// reply with a nil error drops the trigger: no reply record is emitted and
// the trigger is cleared as SKIPPED.
type HandlerFunc func(ctx context.Context, rec core.Record) (*core.Reply, error)

// NewHandler builds the Handler stage: it drains the trigger queue, runs fn
// per record and appends one reply record per produced reply. The trigger's
// correlation identifiers pass through unchanged so the Action can deliver
// into the exact same chat or thread.
func NewHandler(store *queue.Store, triggerQueue, replyQueue string, fn HandlerFunc, optFns ...func(o *Options)) *Stage {
	process := func(ctx context.Context, rec core.Record) (Outcome, error) {
		reply, err := fn(ctx, rec)
		if err != nil {
			return OutcomeCommitted, err
		}
		if reply == nil {
			return OutcomeSkipped, nil
		}
		replyRec := core.Record{
			ID:          rec.ID, // 1:1 lineage with the trigger
			Timestamp:   time.Now().UTC(),
			Source:      rec.Source,
			Correlation: rec.Correlation,
			Text:        rec.Text,
			Reply:       reply,
		}
		if err := store.Append(replyQueue, replyRec); err != nil {
			return OutcomeCommitted, err
		}
		return OutcomeCommitted, nil
	}
	return NewStage("handler", store, triggerQueue, process, optFns...)
}

// NewAction builds the Action stage: it drains the reply queue and performs
// the external delivery. Records without reply text are skipped. Whether a
// send is threaded or a new message is the channel's call, made solely from
// the correlation identifiers on the record.
func NewAction(store *queue.Store, replyQueue string, channel core.DeliveryChannel, optFns ...func(o *Options)) *Stage {
	process := func(ctx context.Context, rec core.Record) (Outcome, error) {
		if !rec.IsReply() {
			return OutcomeSkipped, nil
		}
		if err := channel.Deliver(ctx, rec.Correlation, rec.Reply.Text); err != nil {
			return OutcomeCommitted, &core.DeliveryError{Channel: channel.Name(), Err: err}
		}
		return OutcomeCommitted, nil
	}
	return NewStage("action", store, replyQueue, process, optFns...)
}
