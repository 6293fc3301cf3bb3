package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/logging"
)

// Options configures a Store.
type Options struct {
	// Logger receives queue lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Store manages every queue under one directory. A queue named "triggers"
// lives at <dir>/triggers.jsonl.
//
// Concurrency: Append is a single O_APPEND write and is safe against
// concurrent producers, in-process or not. Clear and Commit rename the
// live log aside before compacting, so they never drop an append racing
// them from another process. The per-queue lock serializes in-process
// callers; the design still assumes at most one live consumer per queue
// at a time (two drains of the same queue from separate processes may
// double-process records).
type Store struct {
	dir    string
	logger logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a queue store rooted at dir. The directory is created
// lazily on first write.
func NewStore(dir string, optFns ...func(o *Options)) *Store {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{dir: dir, logger: opts.Logger, locks: map[string]*sync.Mutex{}}
}

// Path returns the file backing the named queue.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".jsonl")
}

func (s *Store) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Load returns every record currently in the named queue. A missing or
// empty queue yields an empty slice, never an error. Malformed persisted
// content fails with a *core.CorruptQueueError; the file is left untouched
// so no data is silently dropped.
func (s *Store) Load(name string) ([]core.Record, error) {
	data, err := os.ReadFile(s.Path(name))
	if os.IsNotExist(err) {
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue %q: %w", name, err)
	}
	return decode(name, data)
}

// Append adds one record to the end of the named queue. The record is
// written as a single line in one write call, so concurrent appenders
// interleave whole records, never fragments.
func (s *Store) Append(name string, rec core.Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record for queue %q: %w", name, err)
	}
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create queue dir: %w", err)
	}
	f, err := os.OpenFile(s.Path(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open queue %q: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append to queue %q: %w", name, err)
	}
	s.logger.Debug("queue append", "queue", name, "id", rec.ID)
	return nil
}

// Save atomically replaces the named queue's contents. The new state is
// written to a temporary file and renamed into place, so a crashed writer
// never leaves a half-written queue behind. Unlike Clear and Commit it is
// a plain replacement: an append from another process racing the rename
// is overwritten, so Save is for tooling on quiesced queues only.
func (s *Store) Save(name string, recs []core.Record) error {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()
	return s.saveLocked(name, recs)
}

func (s *Store) saveLocked(name string, recs []core.Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create queue dir: %w", err)
	}
	var buf bytes.Buffer
	for _, rec := range recs {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record for queue %q: %w", name, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for queue %q: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file for queue %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for queue %q: %w", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace queue %q: %w", name, err)
	}
	s.logger.Debug("queue saved", "queue", name, "records", len(recs))
	return nil
}

// appendAllLocked appends records to the live log in one write call.
func (s *Store) appendAllLocked(name string, recs []core.Record) error {
	if len(recs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, rec := range recs {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record for queue %q: %w", name, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create queue dir: %w", err)
	}
	f, err := os.OpenFile(s.Path(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open queue %q: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append to queue %q: %w", name, err)
	}
	return nil
}

// restoreLocked folds a snapshot left behind by an interrupted compaction
// back into the live log, replaying its records rather than clobbering
// them on the next detach.
func (s *Store) restoreLocked(name, snap string) error {
	data, err := os.ReadFile(snap)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read queue snapshot %q: %w", name, err)
	}
	recs, err := decode(name, data)
	if err != nil {
		return err
	}
	if err := s.appendAllLocked(name, recs); err != nil {
		return err
	}
	if err := os.Remove(snap); err != nil {
		return fmt.Errorf("drop queue snapshot %q: %w", name, err)
	}
	s.logger.Warn("recovered interrupted compaction", "queue", name, "records", len(recs))
	return nil
}

// detachLocked takes the live log out of the appenders' path by renaming
// it aside. Producers append via O_CREATE|O_APPEND, so a write racing the
// compaction either lands before the rename (and is in the snapshot) or
// recreates a fresh live file afterwards; it cannot be lost to the
// read-modify-write. The in-process lock alone would not give this
// guarantee against an appender in another process.
//
// Returns the decoded snapshot and its path; an empty path means the queue
// had no file.
func (s *Store) detachLocked(name string) ([]core.Record, string, error) {
	live := s.Path(name)
	snap := live + ".compact"

	if err := s.restoreLocked(name, snap); err != nil {
		return nil, "", err
	}

	err := os.Rename(live, snap)
	if os.IsNotExist(err) {
		return []core.Record{}, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("detach queue %q: %w", name, err)
	}
	data, err := os.ReadFile(snap)
	if err != nil {
		return nil, "", fmt.Errorf("read queue %q: %w", name, err)
	}
	recs, err := decode(name, data)
	if err != nil {
		// Corrupt content is never dropped. Put the file back where the
		// operator expects it unless an append has already recreated it.
		if _, statErr := os.Stat(live); os.IsNotExist(statErr) {
			_ = os.Rename(snap, live)
		}
		return nil, "", err
	}
	return recs, snap, nil
}

// Clear empties the named queue and returns exactly the records it held.
// The live log is renamed aside before it is read, so appends racing the
// clear, in-process or from another process, either end up in the returned
// snapshot or in the fresh log; none are dropped.
func (s *Store) Clear(name string) ([]core.Record, error) {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	recs, snap, err := s.detachLocked(name)
	if err != nil {
		return nil, err
	}
	if snap != "" {
		if err := os.Remove(snap); err != nil {
			return nil, fmt.Errorf("drop queue snapshot %q: %w", name, err)
		}
	}
	s.logger.Info("queue cleared", "queue", name, "records", len(recs))
	return recs, nil
}

// Commit removes the given completed records from the named queue, keeping
// everything else: records that failed processing, records never drained,
// and records appended after the consumer took its snapshot. Each completed
// record removes at most one matching occurrence. Kept records are
// re-appended behind any appends that raced the compaction; a crash before
// the snapshot is removed replays it on the next run, so a record may be
// seen twice but never lost.
func (s *Store) Commit(name string, done []core.Record) error {
	if len(done) == 0 {
		return nil
	}
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	current, snap, err := s.detachLocked(name)
	if err != nil {
		return err
	}
	if snap == "" {
		return nil
	}
	remaining := current[:0:0]
	pending := make([]core.Record, len(done))
	copy(pending, done)
	for _, rec := range current {
		matched := -1
		for i, d := range pending {
			if rec.Same(d) {
				matched = i
				break
			}
		}
		if matched >= 0 {
			pending = append(pending[:matched], pending[matched+1:]...)
			continue
		}
		remaining = append(remaining, rec)
	}
	if err := s.appendAllLocked(name, remaining); err != nil {
		return err
	}
	if err := os.Remove(snap); err != nil {
		return fmt.Errorf("drop queue snapshot %q: %w", name, err)
	}
	s.logger.Info("queue committed", "queue", name, "removed", len(done)-len(pending), "remaining", len(remaining))
	return nil
}

// decode parses queue file contents: one JSON object per line, or a legacy
// whole-file JSON array.
func decode(name string, data []byte) ([]core.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []core.Record{}, nil
	}
	if trimmed[0] == '[' {
		var recs []core.Record
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, &core.CorruptQueueError{Queue: name, Err: err}
		}
		return recs, nil
	}
	var recs []core.Record
	for i, line := range bytes.Split(trimmed, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec core.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &core.CorruptQueueError{Queue: name, Err: fmt.Errorf("line %d: %w", i+1, err)}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
