package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
	"github.com/ragmesh/ragmesh/queue"
)

// TriggerOptions configure a Trigger.
type TriggerOptions struct {
	// Logger receives trigger events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Trigger turns normalized external events into queued trigger records. It
// never reads a queue: Fire is a single append, safe alongside a
// concurrently draining handler.
type Trigger struct {
	store  *queue.Store
	queue  string
	source string
	opts   TriggerOptions
}

// NewTrigger creates a trigger appending to the named queue, tagging every
// record with the given source.
func NewTrigger(store *queue.Store, queueName, source string, optFns ...func(o *TriggerOptions)) *Trigger {
	opts := TriggerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Trigger{store: store, queue: queueName, source: source, opts: opts}
}

// Fire stamps identity onto the record (UUID and timestamp, unless the
// caller supplied them) and appends it to the trigger queue. The stamped
// record is returned.
func (t *Trigger) Fire(_ context.Context, rec core.Record) (core.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Source == "" {
		rec.Source = t.source
	}
	if err := t.store.Append(t.queue, rec); err != nil {
		return core.Record{}, err
	}
	t.opts.Logger.Info("trigger queued", "queue", t.queue, "source", rec.Source, "id", rec.ID)
	return rec, nil
}
