// Package pty implements the session backend on a direct pseudo-terminal,
// for hosts without tmux. Each session is a child process attached to its
// own pty, with an in-memory ring buffer standing in for scrollback.
//
// Unlike tmux, pty sessions are children of this process: on exit the
// master side closes and the child is hung up, so sessions do not outlive
// the daemon and restart restore can only recreate them, never reattach.
// Hosts that need surviving sessions should use the tmux backend.
package pty

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/crewly-ai/crewly/internal/session"
)

// maxScrollback bounds the per-session ring buffer.
const maxScrollback = 256 * 1024

// ansiRe matches ANSI escape sequences for the rendered-text view.
// CapturePane strips them; RawHistory keeps them.
var ansiRe = regexp.MustCompile(`\x1b(\[[0-9;?]*[a-zA-Z]|\][^\x07]*(\x07|\x1b\\)|[()][A-B0-2])`)

// keyBytes maps the portable key names used by the Backend interface to the
// bytes written to the pty.
var keyBytes = map[string]string{
	"Enter":  "\r",
	"Escape": "\x1b",
	"C-c":    "\x03",
	"C-u":    "\x15",
	"C-d":    "\x04",
	"C-l":    "\x0c",
	"Tab":    "\t",
}

type ptySession struct {
	cmd  *exec.Cmd
	file *os.File

	mu   sync.Mutex
	buf  []byte
	dead bool
}

func (s *ptySession) append(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, data...)
	if len(s.buf) > maxScrollback {
		s.buf = s.buf[len(s.buf)-maxScrollback:]
	}
}

func (s *ptySession) snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

func (s *ptySession) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.dead
}

func (s *ptySession) markDead() {
	s.mu.Lock()
	s.dead = true
	s.mu.Unlock()
}

// Backend manages sessions as pty-attached child processes.
type Backend struct {
	mu       sync.Mutex
	sessions map[string]*ptySession
}

// NewBackend creates a pty-backed session manager.
func NewBackend() *Backend {
	return &Backend{sessions: make(map[string]*ptySession)}
}

var _ session.Backend = (*Backend)(nil)

// CreateSession spawns the command on a fresh pty in its own session
// (setsid), detaching it from the orchestrator's controlling terminal.
func (b *Backend) CreateSession(name string, opts session.CreateOptions) error {
	b.mu.Lock()
	if existing, ok := b.sessions[name]; ok && existing.alive() {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", session.ErrDuplicateSession, name)
	}
	b.mu.Unlock()

	command := opts.Command
	if command == "" {
		command = "/bin/sh"
	}
	cmd := exec.Command(command, opts.Args...)
	cmd.Dir = opts.WorkDir
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	file, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("starting pty session %s: %w", name, err)
	}

	sess := &ptySession{cmd: cmd, file: file}
	b.mu.Lock()
	b.sessions[name] = sess
	b.mu.Unlock()

	// Reader drains the pty into the ring buffer until the process exits.
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := file.Read(buf)
			if n > 0 {
				sess.append(buf[:n])
			}
			if err != nil {
				sess.markDead()
				_ = cmd.Wait()
				return
			}
		}
	}()

	return nil
}

// KillSession terminates the session's process group. Idempotent.
func (b *Backend) KillSession(name string) error {
	b.mu.Lock()
	sess, ok := b.sessions[name]
	delete(b.sessions, name)
	b.mu.Unlock()
	if !ok {
		return nil
	}

	if sess.cmd.Process != nil {
		// Negative pid signals the process group created by setsid.
		_ = syscall.Kill(-sess.cmd.Process.Pid, syscall.SIGKILL)
		_ = sess.cmd.Process.Kill()
	}
	_ = sess.file.Close()
	sess.markDead()
	return nil
}

// HasSession reports whether a live process owns the name.
func (b *Backend) HasSession(name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, ok := b.sessions[name]
	return ok && sess.alive(), nil
}

// ListSessions returns the names of sessions with live processes.
func (b *Backend) ListSessions() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for name, sess := range b.sessions {
		if sess.alive() {
			names = append(names, name)
		}
	}
	return names, nil
}

// CapturePane returns the last tailLines of rendered (escape-stripped)
// output, or "" if the session is absent.
func (b *Backend) CapturePane(name string, tailLines int) string {
	sess := b.get(name)
	if sess == nil {
		return ""
	}
	text := ansiRe.ReplaceAllString(string(sess.snapshot()), "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	return strings.Join(lines, "\n")
}

// RawHistory returns the scrollback with ANSI sequences intact.
func (b *Backend) RawHistory(name string) string {
	sess := b.get(name)
	if sess == nil {
		return ""
	}
	return string(sess.snapshot())
}

// SendKeys writes the named key's byte sequence to the pty. Unknown names
// are written literally, matching tmux send-keys fallback behavior.
func (b *Backend) SendKeys(name, keys string) error {
	data, ok := keyBytes[keys]
	if !ok {
		data = keys
	}
	return b.write(name, data)
}

// SendText writes literal text to the pty without a trailing newline.
func (b *Backend) SendText(name, text string) error {
	return b.write(name, text)
}

// SendEnter presses Enter.
func (b *Backend) SendEnter(name string) error {
	return b.SendKeys(name, "Enter")
}

// SendEscape presses Escape.
func (b *Backend) SendEscape(name string) error {
	return b.SendKeys(name, "Escape")
}

// ClearCommandLine clears partially typed input with Ctrl-U.
func (b *Backend) ClearCommandLine(name string) error {
	return b.SendKeys(name, "C-u")
}

// Destroy kills all sessions.
func (b *Backend) Destroy() error {
	b.mu.Lock()
	names := make([]string, 0, len(b.sessions))
	for name := range b.sessions {
		names = append(names, name)
	}
	b.mu.Unlock()

	for _, name := range names {
		_ = b.KillSession(name)
	}
	return nil
}

func (b *Backend) get(name string) *ptySession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[name]
}

func (b *Backend) write(name, data string) error {
	sess := b.get(name)
	if sess == nil {
		return nil // input to a missing session is a no-op, like tmux
	}
	if _, err := sess.file.Write([]byte(data)); err != nil {
		return fmt.Errorf("writing to session %s: %w", name, err)
	}
	return nil
}
