package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ragmesh/ragmesh/logging"
)

// Options configures a Store.
type Options struct {
	// Logger receives memory lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Store persists one Conversation per key as a JSON file under dir. Saves
// are atomic (temp file + rename) and trim FIFO to max_pairs before
// persisting, so the on-disk history is never longer than the configured
// bound.
type Store struct {
	dir    string
	logger logging.Logger
	mu     sync.Mutex
}

// NewStore creates a memory store rooted at dir.
func NewStore(dir string, optFns ...func(o *Options)) *Store {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{dir: dir, logger: opts.Logger}
}

// fileKey maps an arbitrary conversation key onto a single safe filename
// component. Keys built from mail addresses or thread headers can carry
// path separators and other hostile bytes; percent-encoding everything
// outside [A-Za-z0-9._-] keeps the file inside dir and the mapping
// reversible, so distinct keys never collide.
func fileKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '.' || c == '_' || c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, fileKey(key)+".json")
}

// Load returns the persisted conversation for key. A missing file is an
// empty conversation, never an error.
func (s *Store) Load(key string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return Conversation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory %q: %w", key, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Conversation{}, nil
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode memory %q: %w", key, err)
	}
	return conv, nil
}

// Save trims conv to the maxPairs most recent exchanges and persists it
// atomically. maxPairs 0 disables memory for the key: an empty history is
// written regardless of conv.
func (s *Store) Save(key string, conv Conversation, maxPairs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := conv.Trim(maxPairs)
	if trimmed == nil {
		trimmed = Conversation{}
	}
	data, err := json.MarshalIndent(trimmed, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory %q: %w", key, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, fileKey(key)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for memory %q: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write memory %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close memory %q: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace memory %q: %w", key, err)
	}
	s.logger.Debug("memory saved", "key", key, "exchanges", len(trimmed))
	return nil
}

// Clear removes the persisted history for key. Clearing an absent key is a
// no-op.
func (s *Store) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear memory %q: %w", key, err)
	}
	s.logger.Info("memory cleared", "key", key)
	return nil
}
