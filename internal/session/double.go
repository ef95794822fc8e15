package session

import (
	"strings"
	"sync"
)

// Double is a FAKE with SPY capabilities for the Backend interface.
//
// Test Double Taxonomy (Meszaros/Fowler):
//   - FAKE: Working in-memory implementation (no real tmux subprocess)
//   - SPY: Records injected keys and text for verification (KeyLog, TextLog)
//
// Use the conformance tests to verify it matches real backend behavior.
// For error injection, wrap with a stub that intercepts specific methods.
type Double struct {
	mu       sync.RWMutex
	sessions map[string]*doubleSession
}

type doubleSession struct {
	opts    CreateOptions
	buffer  []string // captured output lines
	history []string // raw scrollback, includes cleared lines
	keyLog  []string // control sequences sent
	textLog []string // literal text sent
}

// NewDouble creates a new in-memory Backend test double.
func NewDouble() *Double {
	return &Double{sessions: make(map[string]*doubleSession)}
}

var _ Backend = (*Double)(nil)

// CreateSession creates a new session. Fails if the name is already taken.
func (d *Double) CreateSession(name string, opts CreateOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.sessions[name]; exists {
		return ErrDuplicateSession
	}
	d.sessions[name] = &doubleSession{
		opts:   opts,
		buffer: []string{"$ "}, // simulate a shell prompt
	}
	return nil
}

// KillSession removes a session. Idempotent.
func (d *Double) KillSession(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.sessions, name)
	return nil
}

// HasSession reports whether the session exists.
func (d *Double) HasSession(name string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.sessions[name]
	return exists, nil
}

// ListSessions returns all session names.
func (d *Double) ListSessions() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.sessions))
	for name := range d.sessions {
		names = append(names, name)
	}
	return names, nil
}

// CapturePane returns the last tailLines of the session buffer, or "" if
// the session does not exist.
func (d *Double) CapturePane(name string, tailLines int) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sess, exists := d.sessions[name]
	if !exists {
		return ""
	}
	start := 0
	if len(sess.buffer) > tailLines {
		start = len(sess.buffer) - tailLines
	}
	return strings.Join(sess.buffer[start:], "\n")
}

// RawHistory returns the full scrollback, or "" if the session is absent.
func (d *Double) RawHistory(name string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sess, exists := d.sessions[name]
	if !exists {
		return ""
	}
	return strings.Join(append(append([]string{}, sess.history...), sess.buffer...), "\n")
}

// SendKeys logs the key sequence for verification.
func (d *Double) SendKeys(name, keys string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess, exists := d.sessions[name]
	if !exists {
		return nil // real backends tolerate missing sessions on input ops
	}
	sess.keyLog = append(sess.keyLog, keys)
	return nil
}

// SendText appends text to the session buffer and logs it.
func (d *Double) SendText(name, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess, exists := d.sessions[name]
	if !exists {
		return nil
	}
	sess.textLog = append(sess.textLog, text)
	sess.buffer = append(sess.buffer, text)
	return nil
}

// SendEnter presses Enter.
func (d *Double) SendEnter(name string) error {
	return d.SendKeys(name, "Enter")
}

// SendEscape presses Escape.
func (d *Double) SendEscape(name string) error {
	return d.SendKeys(name, "Escape")
}

// ClearCommandLine simulates Ctrl-U.
func (d *Double) ClearCommandLine(name string) error {
	return d.SendKeys(name, "C-u")
}

// Destroy removes all sessions.
func (d *Double) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sessions = make(map[string]*doubleSession)
	return nil
}

// --- Test helpers (not part of the Backend interface) ---

// SetBuffer sets the capture buffer for a session (for test setup).
func (d *Double) SetBuffer(name string, lines []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sess, exists := d.sessions[name]; exists {
		sess.history = append(sess.history, sess.buffer...)
		sess.buffer = lines
	}
}

// AppendOutput appends lines to the capture buffer (simulates agent output).
func (d *Double) AppendOutput(name string, lines ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sess, exists := d.sessions[name]; exists {
		sess.buffer = append(sess.buffer, lines...)
	}
}

// KeyLog returns the control sequences sent to a session.
func (d *Double) KeyLog(name string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sess, exists := d.sessions[name]
	if !exists {
		return nil
	}
	out := make([]string, len(sess.keyLog))
	copy(out, sess.keyLog)
	return out
}

// TextLog returns the literal text sent to a session.
func (d *Double) TextLog(name string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sess, exists := d.sessions[name]
	if !exists {
		return nil
	}
	out := make([]string, len(sess.textLog))
	copy(out, sess.textLog)
	return out
}

// Options returns the CreateOptions a session was created with.
func (d *Double) Options(name string) (CreateOptions, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sess, exists := d.sessions[name]
	if !exists {
		return CreateOptions{}, false
	}
	return sess.opts, true
}

// SessionCount returns the number of live sessions.
func (d *Double) SessionCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.sessions)
}
