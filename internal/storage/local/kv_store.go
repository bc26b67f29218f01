package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// journalName holds a batch while SetMany applies it. validKey never
// produces a name starting with a dot, so it cannot collide with a value.
const journalName = ".batch.json"

// KVStore persists each key as one JSON file under a directory. Writes are
// atomic, so a reader never observes a partially written value.
type KVStore struct {
	mu  sync.RWMutex
	dir string
}

// NewKVStore creates a file-backed key/value store rooted at cfg.BaseDir.
func NewKVStore(cfg Config) (*KVStore, error) {
	if err := ensureDir(cfg.BaseDir); err != nil {
		return nil, err
	}
	s := &KVStore{dir: cfg.BaseDir}
	if err := s.replay(); err != nil {
		return nil, err
	}
	return s, nil
}

// replay finishes a batch interrupted before every value was written.
func (s *KVStore) replay() error {
	journal := filepath.Join(s.dir, journalName)
	// #nosec G304 -- fixed name under the store directory.
	data, err := os.ReadFile(journal)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read batch journal: %w", err)
	}
	var values map[string][]byte
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decode batch journal: %w", err)
	}
	return s.apply(journal, values)
}

func (s *KVStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Get reads the value stored under key.
func (s *KVStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	// #nosec G304 -- key is validated against validKey.
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, true, nil
}

// Set durably replaces the value stored under key.
func (s *KVStore) Set(_ context.Context, key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(p, value)
}

// SetMany writes every value or, after a crash, none until the next open
// replays the batch. The batch is journaled before any value is replaced.
func (s *KVStore) SetMany(_ context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	for key := range values {
		if _, err := s.path(key); err != nil {
			return err
		}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	journal := filepath.Join(s.dir, journalName)
	if err := writeFileAtomic(journal, data); err != nil {
		return fmt.Errorf("write batch journal: %w", err)
	}
	return s.apply(journal, values)
}

func (s *KVStore) apply(journal string, values map[string][]byte) error {
	for key, value := range values {
		p, err := s.path(key)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(p, value); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	if err := os.Remove(journal); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove batch journal: %w", err)
	}
	return nil
}
