// Package pipeline implements the three-stage processing engine that moves
// records through the durable queues: Triggers append normalized inbound
// events, Handlers drain trigger records into reply records, Actions drain
// reply records into external deliveries.
//
// One generic Stage engine drives both consuming stages. A run drains a
// fixed snapshot of the source queue, processes each record independently
// and then commits: only records that reached COMMITTED or SKIPPED are
// removed from the queue, so a failure on one record never discards the
// rest of the batch and failed records stay queued for the next run.
package pipeline

import (
	"context"
	"time"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
	"github.com/ragmesh/ragmesh/queue"
)

// State identifies where a stage run currently is. Exposed mainly for
// logging; a run always ends back at Idle.
type State string

// Stage run states.
const (
	StateIdle       State = "idle"
	StateDraining   State = "draining"
	StateProcessing State = "processing"
)

// Outcome classifies one processed record.
type Outcome int

const (
	// OutcomeCommitted means the record's side effect completed and the
	// record may be cleared from its source queue.
	OutcomeCommitted Outcome = iota
	// OutcomeSkipped means the transform elected to do nothing (e.g. the
	// sender should not get an auto-reply). Skipped records are cleared
	// like committed ones.
	OutcomeSkipped
)

// ProcessFunc is a stage's per-record transform.
type ProcessFunc func(ctx context.Context, rec core.Record) (Outcome, error)

// RecordError pairs a failed record with its error.
type RecordError struct {
	Record core.Record
	Err    error
}

// Result summarizes one stage run.
type Result struct {
	Drained   int
	Committed int
	Skipped   int
	Failed    int
	Errors    []RecordError
}

// Options configure a Stage.
type Options struct {
	// NoClear disables the commit step entirely: the source queue keeps
	// every record, enabling replay and debugging.
	NoClear bool

	// Keep restricts processing to records it accepts. Rejected records
	// count as skipped but stay queued for a later unfiltered run, so a
	// filtered run (--chat-id, --from, per-channel send) never discards
	// anyone else's messages.
	Keep func(rec core.Record) bool

	// Logger receives stage lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Stage is one consuming pipeline stage bound to a source queue.
type Stage struct {
	name    string
	store   *queue.Store
	source  string
	process ProcessFunc
	opts    Options
	state   State
}

// NewStage creates a stage draining the named source queue through process.
func NewStage(name string, store *queue.Store, source string, process ProcessFunc, optFns ...func(o *Options)) *Stage {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Stage{name: name, store: store, source: source, process: process, opts: opts, state: StateIdle}
}

// State returns the stage's current state.
func (s *Stage) State() State { return s.state }

// Run executes one drain-process-commit cycle and returns a summary.
//
// The snapshot read at the start is fixed: records appended mid-run are not
// processed and survive the commit. Per-record errors are collected, never
// propagated as the run error; they exclude the record from the commit set
// so it is retried on the next run. Retry is an explicit operational
// action (re-running the stage), not an internal loop.
//
// A context cancellation stops processing; records already completed are
// still committed so the queue stays consistent with the work performed.
func (s *Stage) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	s.state = StateDraining
	defer func() { s.state = StateIdle }()

	snapshot, err := s.store.Load(s.source)
	if err != nil {
		return Result{}, err
	}
	res := Result{Drained: len(snapshot)}
	if len(snapshot) == 0 {
		s.opts.Logger.Debug("nothing to drain", "stage", s.name, "queue", s.source)
		return res, nil
	}

	var done []core.Record
	var runErr error
	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if s.opts.Keep != nil && !s.opts.Keep(rec) {
			res.Skipped++
			continue
		}
		s.state = StateProcessing
		outcome, err := s.process(ctx, rec)
		s.state = StateDraining
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RecordError{Record: rec, Err: err})
			s.opts.Logger.Error("record failed, left queued for retry",
				"stage", s.name, "queue", s.source, "id", rec.ID, "error", err)
			continue
		}
		switch outcome {
		case OutcomeSkipped:
			res.Skipped++
		default:
			res.Committed++
		}
		done = append(done, rec)
	}

	if !s.opts.NoClear {
		if err := s.store.Commit(s.source, done); err != nil {
			return res, err
		}
	}
	s.opts.Logger.Info("stage run completed",
		"stage", s.name,
		"drained", res.Drained,
		"committed", res.Committed,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration", time.Since(start),
	)
	return res, runErr
}
