// Package tmux implements the session backend on top of the tmux CLI.
// Every operation shells out to tmux with a bounded context so a wedged
// server can never stall the dispatch loop.
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/crewly-ai/crewly/internal/constants"
	"github.com/crewly-ai/crewly/internal/session"
)

// Tmux manages terminal sessions through the tmux command-line tool.
// Sessions are created detached so they survive the orchestrator process.
type Tmux struct {
	mu    sync.Mutex
	owned map[string]bool // sessions created by this backend
}

// NewTmux creates a tmux-backed session manager.
func NewTmux() *Tmux {
	return &Tmux{owned: make(map[string]bool)}
}

var _ session.Backend = (*Tmux)(nil)

// runTmux executes tmux with the given args under a deadline.
func runTmux(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("tmux %s: %w", args[0], err)
		}
		return "", fmt.Errorf("tmux %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// CreateSession spawns a detached tmux session running the given command.
func (t *Tmux) CreateSession(name string, opts session.CreateOptions) error {
	has, err := t.HasSession(name)
	if err != nil {
		return fmt.Errorf("checking session %s: %w", name, err)
	}
	if has {
		return fmt.Errorf("%w: %s", session.ErrDuplicateSession, name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.SendKeysCeiling)
	defer cancel()

	args := []string{"new-session", "-d", "-s", name}
	if opts.WorkDir != "" {
		args = append(args, "-c", opts.WorkDir)
	}
	if opts.Command != "" {
		args = append(args, opts.Command)
		args = append(args, opts.Args...)
	}
	if _, err := runTmux(ctx, args...); err != nil {
		return fmt.Errorf("creating session %s: %w", name, err)
	}

	// Environment is set after creation; set-environment affects processes
	// spawned later in the session (respawns, splits).
	for k, v := range opts.Env {
		envCtx, envCancel := context.WithTimeout(context.Background(), constants.SendKeysCeiling)
		_, _ = runTmux(envCtx, "set-environment", "-t", name, k, v)
		envCancel()
	}

	t.mu.Lock()
	t.owned[name] = true
	t.mu.Unlock()
	return nil
}

// KillSession terminates a session. Idempotent: missing sessions are not an
// error.
func (t *Tmux) KillSession(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.SendKeysCeiling)
	defer cancel()

	_, _ = runTmux(ctx, "kill-session", "-t", name)

	t.mu.Lock()
	delete(t.owned, name)
	t.mu.Unlock()
	return nil
}

// HasSession reports whether a live tmux session owns the name.
func (t *Tmux) HasSession(name string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.SendKeysCeiling)
	defer cancel()

	cmd := exec.CommandContext(ctx, "tmux", "has-session", "-t", "="+name)
	err := cmd.Run()
	// has-session exits non-zero both for "no such session" and "no
	// server"; neither is an error for the caller.
	return err == nil, nil
}

// ListSessions returns the names of live sessions. An absent tmux server
// yields an empty list, not an error.
func (t *Tmux) ListSessions() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CaptureCeiling)
	defer cancel()

	out, err := runTmux(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		return nil, nil
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// CapturePane returns the last tailLines rendered lines of the pane.
// Capture failures (dead session, wedged server) return "".
func (t *Tmux) CapturePane(name string, tailLines int) string {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CaptureCeiling)
	defer cancel()

	out, err := runTmux(ctx, "capture-pane", "-p", "-t", name,
		"-S", fmt.Sprintf("-%d", tailLines))
	if err != nil {
		return ""
	}
	return out
}

// RawHistory returns the entire scrollback including ANSI escape sequences
// (-e). Used by runtime detection heuristics. Failures return "".
func (t *Tmux) RawHistory(name string) string {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CaptureCeiling)
	defer cancel()

	out, err := runTmux(ctx, "capture-pane", "-p", "-e", "-t", name, "-S", "-")
	if err != nil {
		return ""
	}
	return out
}

// SendKeys injects a named key or control sequence (e.g. "C-u", "Escape").
// Missing sessions are tolerated, per the Backend contract.
func (t *Tmux) SendKeys(name, keys string) error {
	has, _ := t.HasSession(name)
	if !has {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.SendKeysCeiling)
	defer cancel()

	if _, err := runTmux(ctx, "send-keys", "-t", name, keys); err != nil {
		return fmt.Errorf("sending keys to %s: %w", name, err)
	}
	return nil
}

// SendText injects literal text. The -l flag disables key-name lookup so
// text like "Enter" or "C-c" is typed verbatim.
func (t *Tmux) SendText(name, text string) error {
	has, _ := t.HasSession(name)
	if !has {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.SendKeysCeiling)
	defer cancel()

	if _, err := runTmux(ctx, "send-keys", "-t", name, "-l", "--", text); err != nil {
		return fmt.Errorf("sending text to %s: %w", name, err)
	}
	return nil
}

// SendEnter presses Enter.
func (t *Tmux) SendEnter(name string) error {
	return t.SendKeys(name, "Enter")
}

// SendEscape presses Escape.
func (t *Tmux) SendEscape(name string) error {
	return t.SendKeys(name, "Escape")
}

// ClearCommandLine clears partially typed input with Ctrl-U. Never Ctrl-C:
// that would interrupt the running CLI rather than clear its input line.
func (t *Tmux) ClearCommandLine(name string) error {
	return t.SendKeys(name, "C-u")
}

// Destroy kills every session this backend created.
func (t *Tmux) Destroy() error {
	t.mu.Lock()
	names := make([]string, 0, len(t.owned))
	for name := range t.owned {
		names = append(names, name)
	}
	t.mu.Unlock()

	for _, name := range names {
		_ = t.KillSession(name)
	}
	return nil
}
