// Package session provides abstractions for running agents in terminal
// sessions and for persisting session metadata across restarts. The primary
// backend is tmux, with a direct pseudo-terminal backend as an alternative
// and an in-memory Double for tests.
package session

import "errors"

// ErrDuplicateSession is returned by CreateSession when a live process
// already owns the requested name.
var ErrDuplicateSession = errors.New("duplicate session")

// CreateOptions describes how to spawn a session's process.
type CreateOptions struct {
	// WorkDir is the working directory for the spawned process.
	WorkDir string

	// Command is the program to run (typically a login shell; the agent
	// CLI is launched inside it afterwards).
	Command string

	// Args are the arguments passed to Command.
	Args []string

	// Env are extra environment variables set in the session.
	Env map[string]string
}

// Backend is the portable interface for managing a collection of named
// terminal sessions. Implementations: *tmux.Tmux, *pty.Backend, *Double.
//
// Contract notes:
//   - KillSession is idempotent and never fails for an absent session.
//   - CapturePane completes in bounded time regardless of process state and
//     returns "" (no error) when capture fails, so callers can probe cheaply.
//   - No operation returns an error merely because a session does not exist,
//     except CreateSession's duplicate check.
type Backend interface {
	// CreateSession spawns a detached process owning the given name.
	// Fails with ErrDuplicateSession if a live process already owns it.
	CreateSession(name string, opts CreateOptions) error

	// KillSession terminates the named session. Idempotent.
	KillSession(name string) error

	// HasSession reports whether a live process owns the name.
	HasSession(name string) (bool, error)

	// ListSessions returns the names of currently-live sessions only.
	ListSessions() ([]string, error)

	// CapturePane returns the last tailLines rendered lines of the pane,
	// after escape-code interpretation. Returns "" on capture failure.
	CapturePane(name string, tailLines int) string

	// RawHistory returns the scrollback including ANSI sequences. Used by
	// runtime detection heuristics. Returns "" on failure.
	RawHistory(name string) string

	// SendKeys injects a named key or control sequence (e.g. "C-u",
	// "Escape") into the session's input stream.
	SendKeys(name, keys string) error

	// SendText injects literal text without a trailing Enter.
	SendText(name, text string) error

	// SendEnter presses Enter.
	SendEnter(name string) error

	// SendEscape presses Escape.
	SendEscape(name string) error

	// ClearCommandLine clears any partially typed input (Ctrl-U; never
	// Ctrl-C, which would interrupt a running CLI).
	ClearCommandLine(name string) error

	// Destroy tears down all sessions owned by this backend.
	Destroy() error
}
