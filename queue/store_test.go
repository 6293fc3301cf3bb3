package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragmesh/ragmesh/core"
)

func newRecord(text string) core.Record {
	return core.Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    core.SourceTelegram,
		Text:      text,
	}
}

func TestStore_LoadMissingQueue(t *testing.T) {
	s := NewStore(t.TempDir())
	recs, err := s.Load("triggers")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_LoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, os.WriteFile(s.Path("triggers"), []byte("\n"), 0o644))
	recs, err := s.Load("triggers")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_AppendAndLoad(t *testing.T) {
	s := NewStore(t.TempDir())
	first := newRecord("hello")
	second := newRecord("world")
	require.NoError(t, s.Append("triggers", first))
	require.NoError(t, s.Append("triggers", second))

	recs, err := s.Load("triggers")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, first.ID, recs[0].ID)
	assert.Equal(t, second.ID, recs[1].ID)
	assert.Equal(t, "hello", recs[0].Text)
}

func TestStore_SaveLoadIdempotent(t *testing.T) {
	s := NewStore(t.TempDir())
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append("q", newRecord(fmt.Sprintf("msg-%d", i))))
	}
	before, err := s.Load("q")
	require.NoError(t, err)

	require.NoError(t, s.Save("q", before))

	after, err := s.Load("q")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStore_LegacyArrayFormat(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	legacy := `[{"id":"a","timestamp":"2024-01-01T00:00:00Z","text":"one"},{"id":"b","timestamp":"2024-01-01T00:01:00Z","text":"two"}]`
	require.NoError(t, os.WriteFile(s.Path("q"), []byte(legacy), 0o644))

	recs, err := s.Load("q")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "two", recs[1].Text)
}

func TestStore_CorruptQueue(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, os.WriteFile(s.Path("bad"), []byte("{not json\n"), 0o644))

	_, err := s.Load("bad")
	var corrupt *core.CorruptQueueError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "bad", corrupt.Queue)

	// The file must survive untouched: corruption is never repaired by
	// deletion.
	data, readErr := os.ReadFile(s.Path("bad"))
	require.NoError(t, readErr)
	assert.Equal(t, "{not json\n", string(data))
}

func TestStore_ClearReturnsContents(t *testing.T) {
	s := NewStore(t.TempDir())
	first := newRecord("a")
	second := newRecord("b")
	require.NoError(t, s.Append("q", first))
	require.NoError(t, s.Append("q", second))

	cleared, err := s.Clear("q")
	require.NoError(t, err)
	require.Len(t, cleared, 2)
	assert.Equal(t, first.ID, cleared[0].ID)
	assert.Equal(t, second.ID, cleared[1].ID)

	recs, err := s.Load("q")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_ClearMissingQueue(t *testing.T) {
	s := NewStore(t.TempDir())
	cleared, err := s.Clear("nothing")
	require.NoError(t, err)
	assert.Empty(t, cleared)
}

// Concurrent appenders racing a single clear: every appended record must end
// up either in the cleared batch or still queued afterwards, with no loss
// and no duplication.
func TestStore_ConcurrentAppendersWithClear(t *testing.T) {
	s := NewStore(t.TempDir())
	const producers = 8
	const perProducer = 25

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				rec := newRecord(fmt.Sprintf("p%d-%d", p, i))
				if err := s.Append("q", rec); err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}(p)
	}

	// Race one clear against the producers.
	cleared, err := s.Clear("q")
	require.NoError(t, err)
	wg.Wait()

	remaining, err := s.Load("q")
	require.NoError(t, err)

	seen := map[string]int{}
	for _, rec := range cleared {
		seen[rec.ID]++
	}
	for _, rec := range remaining {
		seen[rec.ID]++
	}
	assert.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		assert.Equalf(t, 1, n, "record %s observed %d times", id, n)
	}
}

// rawAppend writes a record with its own O_APPEND handle, the way a
// producer in a separate process would: no store, no shared lock.
func rawAppend(path string, rec core.Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// An appender in another process shares no lock with the consumer, so the
// only thing protecting its writes during compaction is the rename-aside:
// a record landing mid-clear must go to either the snapshot or the fresh
// log, never to a file about to be discarded.
func TestStore_ExternalAppenderWithClear(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.Path("q")
	const total = 500

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			if err := rawAppend(path, newRecord(fmt.Sprintf("ext-%d", i))); err != nil {
				t.Errorf("raw append: %v", err)
			}
		}
	}()

	seen := map[string]int{}
	collect := func(recs []core.Record) {
		for _, rec := range recs {
			seen[rec.ID]++
		}
	}

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		cleared, err := s.Clear("q")
		require.NoError(t, err)
		collect(cleared)
		time.Sleep(time.Millisecond)
	}
	cleared, err := s.Clear("q")
	require.NoError(t, err)
	collect(cleared)

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equalf(t, 1, n, "record %s observed %d times", id, n)
	}
}

// A snapshot left behind by a compaction that died before finishing is
// folded back into the live log on the next drain.
func TestStore_RecoversInterruptedCompaction(t *testing.T) {
	s := NewStore(t.TempDir())
	stranded := newRecord("stranded")
	line, err := json.Marshal(stranded)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path("q")+".compact", append(line, '\n'), 0o644))

	fresh := newRecord("fresh")
	require.NoError(t, s.Append("q", fresh))

	cleared, err := s.Clear("q")
	require.NoError(t, err)
	require.Len(t, cleared, 2)
	ids := []string{cleared[0].ID, cleared[1].ID}
	assert.ElementsMatch(t, []string{stranded.ID, fresh.ID}, ids)

	_, err = os.Stat(s.Path("q") + ".compact")
	assert.True(t, os.IsNotExist(err))
}

// Clear on a corrupt queue must fail without moving the file: the operator
// inspects it in place.
func TestStore_ClearCorruptQueueKeepsFile(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(s.Path("bad"), []byte("{not json\n"), 0o644))

	_, err := s.Clear("bad")
	var corrupt *core.CorruptQueueError
	require.ErrorAs(t, err, &corrupt)

	data, readErr := os.ReadFile(s.Path("bad"))
	require.NoError(t, readErr)
	assert.Equal(t, "{not json\n", string(data))
}

func TestStore_CommitRemovesOnlyCompleted(t *testing.T) {
	s := NewStore(t.TempDir())
	recs := []core.Record{newRecord("a"), newRecord("b"), newRecord("c")}
	for _, rec := range recs {
		require.NoError(t, s.Append("q", rec))
	}

	// A producer appends while the consumer is processing its snapshot.
	late := newRecord("late")
	require.NoError(t, s.Append("q", late))

	require.NoError(t, s.Commit("q", []core.Record{recs[0], recs[2]}))

	remaining, err := s.Load("q")
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, recs[1].ID, remaining[0].ID)
	assert.Equal(t, late.ID, remaining[1].ID)
}

func TestStore_CommitWithoutIDsMatchesByValue(t *testing.T) {
	s := NewStore(t.TempDir())
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dup := core.Record{Timestamp: ts, Text: "same"}
	other := core.Record{Timestamp: ts, Text: "other"}
	require.NoError(t, s.Append("q", dup))
	require.NoError(t, s.Append("q", dup))
	require.NoError(t, s.Append("q", other))

	// Committing one copy of a duplicated record removes exactly one.
	require.NoError(t, s.Commit("q", []core.Record{dup}))

	remaining, err := s.Load("q")
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "same", remaining[0].Text)
	assert.Equal(t, "other", remaining[1].Text)
}

func TestStore_CommitNothing(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Append("q", newRecord("a")))
	require.NoError(t, s.Commit("q", nil))
	recs, err := s.Load("q")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStore_CorruptQueueIsNotAnIsNotExist(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, os.WriteFile(s.Path("bad"), []byte("]["), 0o644))
	_, err := s.Load("bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}
