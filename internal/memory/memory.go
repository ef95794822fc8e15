// Package memory persists what agents learn as plain files: per-agent
// markdown under ~/.crewly/agents/{id}/, per-project markdown under
// {project}/.crewly/, daily activity logs, goal and decision tracking, and
// the startup briefings assembled from all of them.
//
// Every write is either append-only (logs, goals, decisions) or atomic
// write-and-rename (summaries, indexes, focus). Append-only files survive a
// crash mid-write as a still-valid markdown document; full-file documents
// never appear half-written.
package memory

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Store is the root handle for all memory services. Methods never cache
// file contents; the filesystem is the source of truth so external editors
// and the agents themselves can touch the same files.
type Store struct {
	logger *slog.Logger
}

// NewStore creates a memory store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger.With("component", "memory")}
}

// appendFile appends text to path, creating parent directories and the file
// as needed. Partial writes are tolerated: the next append still produces a
// valid document.
func appendFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return nil
}

// writeAtomic replaces path's contents via write-to-temp + rename. The temp
// file lands in the target directory so the rename stays on one filesystem.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// readFile returns the file's contents, or "" when it does not exist.
// Read errors other than absence are also flattened to "": memory reads
// feed briefings, which omit missing sections rather than fail.
func readFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// readTail returns at most the last n characters of the file.
func readTail(path string, n int) string {
	content := readFile(path)
	if len(content) <= n {
		return content
	}
	return content[len(content)-n:]
}
