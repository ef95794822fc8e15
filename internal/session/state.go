package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/crewly-ai/crewly/internal/constants"
)

// PersistedInfo is the durable snapshot of a session: everything needed to
// recreate its process after a restart, plus the opaque runtime session ID
// the adapter uses to resume its conversational state.
type PersistedInfo struct {
	Name             string            `json:"name"`
	Cwd              string            `json:"cwd"`
	Command          string            `json:"command"`
	Args             []string          `json:"args"`
	Env              map[string]string `json:"env,omitempty"`
	RuntimeType      string            `json:"runtimeType"`
	Role             string            `json:"role,omitempty"`
	TeamID           string            `json:"teamId,omitempty"`
	MemberID         string            `json:"memberId,omitempty"`
	RuntimeSessionID string            `json:"runtimeSessionId,omitempty"`
}

// stateFile is the on-disk schema (version 1).
type stateFile struct {
	Version  int             `json:"version"`
	SavedAt  time.Time       `json:"savedAt"`
	Sessions []PersistedInfo `json:"sessions"`
}

// StateStore persists session metadata to a JSON snapshot and restores the
// processes on restart. It owns metadata only, never process handles.
//
// Writes are atomic (write-to-temp + same-directory rename) and serialized
// with a lock file so concurrent saves from auto-save goroutines cannot
// interleave.
type StateStore struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]PersistedInfo
	restored map[string]bool
	logger   *slog.Logger
	saves    sync.WaitGroup
}

// NewStateStore creates a store persisting to path.
func NewStateStore(path string, logger *slog.Logger) *StateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStore{
		path:     path,
		sessions: make(map[string]PersistedInfo),
		restored: make(map[string]bool),
		logger:   logger.With("component", "state-store"),
	}
}

// RegisterSession adds or overwrites metadata for a session and triggers an
// asynchronous best-effort save.
func (s *StateStore) RegisterSession(name string, opts CreateOptions, runtimeType, role, teamID, memberID string) {
	s.mu.Lock()
	s.sessions[name] = PersistedInfo{
		Name:        name,
		Cwd:         opts.WorkDir,
		Command:     opts.Command,
		Args:        append([]string(nil), opts.Args...),
		Env:         opts.Env,
		RuntimeType: runtimeType,
		Role:        role,
		TeamID:      teamID,
		MemberID:    memberID,
	}
	s.mu.Unlock()
	s.autoSave()
}

// UnregisterSession removes a session's metadata and triggers auto-save.
func (s *StateStore) UnregisterSession(name string) {
	s.mu.Lock()
	delete(s.sessions, name)
	delete(s.restored, name)
	s.mu.Unlock()
	s.autoSave()
}

// UpdateSessionID records the adapter-supplied resume handle and triggers
// auto-save. Unknown names are ignored.
func (s *StateStore) UpdateSessionID(name, runtimeSessionID string) {
	s.mu.Lock()
	if info, ok := s.sessions[name]; ok {
		info.RuntimeSessionID = runtimeSessionID
		s.sessions[name] = info
	}
	s.mu.Unlock()
	s.autoSave()
}

// Get returns the persisted metadata for a session, if registered.
func (s *StateStore) Get(name string) (PersistedInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.sessions[name]
	return info, ok
}

// List returns all registered metadata, in no particular order.
func (s *StateStore) List() []PersistedInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PersistedInfo, 0, len(s.sessions))
	for _, info := range s.sessions {
		out = append(out, info)
	}
	return out
}

// WasRestored reports whether a session was recreated from the snapshot
// during RestoreState. The adapter layer uses this to resume rather than
// re-initialize the runtime's conversation.
func (s *StateStore) WasRestored(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restored[name]
}

// SaveState writes all registered metadata to disk. It deliberately does not
// consult the backend for liveness: at shutdown the processes are already
// gone, and the snapshot must still record the intent to resume them.
func (s *StateStore) SaveState() error {
	s.mu.RLock()
	doc := stateFile{
		Version:  constants.SessionStateVersion,
		SavedAt:  time.Now().UTC(),
		Sessions: make([]PersistedInfo, 0, len(s.sessions)),
	}
	for _, info := range s.sessions {
		doc.Sessions = append(doc.Sessions, info)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	// Lock-file discipline around the atomic rename so concurrent
	// auto-saves from multiple goroutines cannot interleave.
	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	return nil
}

// RestoreState reads the snapshot and recreates each session via the
// backend, using the persisted command and args as-is. Adapter-specific
// argument injection (resume flags) happens at the adapter layer, never
// here. Returns the number of sessions successfully recreated.
//
// An unknown schema version restores nothing and logs a warning.
func (s *StateStore) RestoreState(backend Backend) (int, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading session state: %w", err)
	}

	var doc stateFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parsing session state: %w", err)
	}
	if doc.Version != constants.SessionStateVersion {
		s.logger.Warn("unknown session-state version, skipping restore",
			"version", doc.Version, "supported", constants.SessionStateVersion)
		return 0, nil
	}

	restored := 0
	for _, info := range doc.Sessions {
		opts := CreateOptions{
			WorkDir: info.Cwd,
			Command: info.Command,
			Args:    info.Args,
			Env:     info.Env,
		}
		if err := backend.CreateSession(info.Name, opts); err != nil {
			s.logger.Warn("failed to restore session", "session", info.Name, "error", err)
			continue
		}
		s.mu.Lock()
		s.sessions[info.Name] = info
		s.restored[info.Name] = true
		s.mu.Unlock()
		restored++
	}
	return restored, nil
}

// LoadMetadata reads the snapshot into memory without recreating any
// process. Inspection surfaces use this; RestoreState is for startup.
func (s *StateStore) LoadMetadata() (int, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading session state: %w", err)
	}

	var doc stateFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parsing session state: %w", err)
	}
	if doc.Version != constants.SessionStateVersion {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, info := range doc.Sessions {
		s.sessions[info.Name] = info
	}
	return len(doc.Sessions), nil
}

// ClearState deletes the persisted snapshot file.
func (s *StateStore) ClearState() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session state: %w", err)
	}
	return nil
}

// ClearMetadata drops all in-memory metadata and the restored set.
func (s *StateStore) ClearMetadata() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]PersistedInfo)
	s.restored = make(map[string]bool)
}

// ClearStateAndMetadata clears both the snapshot file and the in-memory
// metadata.
func (s *StateStore) ClearStateAndMetadata() error {
	s.ClearMetadata()
	return s.ClearState()
}

// Flush blocks until all in-flight auto-saves have finished. Call before
// clearing or inspecting the snapshot file at shutdown.
func (s *StateStore) Flush() {
	s.saves.Wait()
}

// autoSave persists in the background. Failures are logged, never
// propagated: mutation callers must not be blocked on persistence.
func (s *StateStore) autoSave() {
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		if err := s.SaveState(); err != nil {
			s.logger.Warn("auto-save failed", "error", err)
		}
	}()
}
