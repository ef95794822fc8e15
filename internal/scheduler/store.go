package scheduler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/natefinch/atomic"

	"github.com/crewly-ai/crewly/internal/config"
)

// storeVersion is the on-disk schema version of scheduled-messages.json.
const storeVersion = 1

type storeFile struct {
	Version  int       `json:"version"`
	SavedAt  time.Time `json:"savedAt"`
	Messages []Message `json:"messages"`
}

// Store persists scheduled messages as a single JSON document, rewritten
// atomically on every mutation. An optional filesystem watch reports
// external edits so the scheduler can re-arm its timers.
type Store struct {
	mu      sync.Mutex
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStore creates a store at the default path (~/.crewly/
// scheduled-messages.json).
func NewStore(logger *slog.Logger) *Store {
	return NewStoreAt(config.ScheduledMessagesPath(), logger)
}

// NewStoreAt creates a store at an explicit path.
func NewStoreAt(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger.With("component", "scheduler-store")}
}

// Load returns all persisted entries. A missing file is an empty store.
func (s *Store) Load() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Active returns the persisted entries still flagged active.
func (s *Store) Active() ([]Message, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	var active []Message
	for _, m := range all {
		if m.IsActive {
			active = append(active, m)
		}
	}
	return active, nil
}

// Get returns one entry by id.
func (s *Store) Get(id string) (Message, bool, error) {
	all, err := s.Load()
	if err != nil {
		return Message{}, false, err
	}
	for _, m := range all {
		if m.ID == id {
			return m, true, nil
		}
	}
	return Message{}, false, nil
}

// Upsert inserts or replaces an entry and rewrites the store.
func (s *Store) Upsert(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadLocked()
	if err != nil {
		return err
	}
	replaced := false
	for i := range all {
		if all[i].ID == msg.ID {
			all[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, msg)
	}
	return s.saveLocked(all)
}

// Delete removes an entry. Unknown ids are a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadLocked()
	if err != nil {
		return err
	}
	kept := all[:0]
	for _, m := range all {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	return s.saveLocked(kept)
}

// Watch reports external modifications of the store file via onChange.
// Events are debounced; onChange runs on the watcher goroutine and must not
// block. Close stops the watch.
func (s *Store) Watch(onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		watcher.Close()
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	// Watch the directory, not the file: atomic renames replace the inode.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-s.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path || !event.Op.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(250*time.Millisecond, onChange)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("store watch error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the filesystem watch, if any.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}

func (s *Store) loadLocked() ([]Message, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if file.Version != storeVersion {
		s.logger.Warn("unknown store version, ignoring contents",
			"path", s.path, "version", file.Version)
		return nil, nil
	}
	return file.Messages, nil
}

func (s *Store) saveLocked(all []Message) error {
	file := storeFile{Version: storeVersion, SavedAt: time.Now(), Messages: all}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding scheduled messages: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(s.path), err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}
