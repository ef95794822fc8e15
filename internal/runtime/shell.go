package runtime

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/crewly-ai/crewly/internal/session"
)

// ShellAdapter treats a plain shell as the runtime. There is no CLI to
// launch; readiness means the shell is at its prompt. Prompt injection
// wraps multi-line or quote-bearing content in a here-document so it
// cannot execute line-by-line.
type ShellAdapter struct {
	readyPatterns []string
	errorPatterns []string
	exitPatterns  []*regexp.Regexp
}

// NewShellAdapter creates the shell adapter.
func NewShellAdapter() *ShellAdapter {
	return &ShellAdapter{
		readyPatterns: []string{"$ ", "# ", "% "},
		errorPatterns: []string{},
		exitPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^(logout|exit)$`),
		},
	}
}

var _ Adapter = (*ShellAdapter)(nil)

func (a *ShellAdapter) Type() Type { return TypeShell }

// LaunchCommand is empty: the session's shell is already the runtime, and
// shells have no conversational state to resume.
func (a *ShellAdapter) LaunchCommand(string) string { return "" }

// PostInitialize is a no-op for shells.
func (a *ShellAdapter) PostInitialize(string) error { return nil }

// DetectReady reports whether the last pane line looks like a shell prompt.
func (a *ShellAdapter) DetectReady(backend session.Backend, name string) bool {
	pane := backend.CapturePane(name, detectTailLines)
	if pane == "" {
		return false
	}
	lines := strings.Split(strings.TrimRight(pane, "\n"), "\n")
	last := lines[len(lines)-1]
	for _, p := range a.readyPatterns {
		if strings.HasSuffix(last, p) || strings.TrimSpace(last) == strings.TrimSpace(p) {
			return true
		}
	}
	return false
}

func (a *ShellAdapter) DetectIdle(ctx context.Context, backend session.Backend, name string, timeout time.Duration) bool {
	return pollIdle(ctx, backend, name, a.readyPatterns, a.exitPatterns, timeout)
}

// InjectPrompt types the content at the prompt, wrapping shell-unfriendly
// content (newlines, quotes, expansions) in a here-document or base64.
func (a *ShellAdapter) InjectPrompt(backend session.Backend, name, content string) error {
	if needsShellWrapping(content) {
		content = wrapShellCommand(content)
	}
	return injectPlain(backend, name, content)
}

// ParseResponse returns the output following the last command echo.
func (a *ShellAdapter) ParseResponse(paneText string) string {
	lines := strings.Split(paneText, "\n")
	start := 0
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "$ ") || strings.HasPrefix(trimmed, "# ") {
			start = i + 1
			break
		}
	}
	var out []string
	for _, line := range lines[start:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func (a *ShellAdapter) ReadyPatterns() []string        { return a.readyPatterns }
func (a *ShellAdapter) ErrorPatterns() []string        { return a.errorPatterns }
func (a *ShellAdapter) ExitPatterns() []*regexp.Regexp { return a.exitPatterns }
