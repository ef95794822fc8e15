package runtime

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/crewly-ai/crewly/internal/config"
	"github.com/crewly-ai/crewly/internal/session"
)

// CodexAdapter drives the codex-cli runtime.
type CodexAdapter struct {
	command       string
	readyPatterns []string
	errorPatterns []string
	exitPatterns  []*regexp.Regexp
}

// NewCodexAdapter creates the codex-cli adapter. CODEX_CMD overrides the
// CLI command.
func NewCodexAdapter() *CodexAdapter {
	return &CodexAdapter{
		command: config.RuntimeCommand(config.CodexCmdEnv, "codex"),
		readyPatterns: []string{
			"⏎ send",
			"Ctrl+C to quit",
			"▌",
		},
		errorPatterns: []string{
			"command not found: codex",
			"codex: command not found",
			"stream error",
			"rate limit",
		},
		exitPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*\$\s*$`),
		},
	}
}

var _ Adapter = (*CodexAdapter)(nil)

func (a *CodexAdapter) Type() Type { return TypeCodexCLI }

// LaunchCommand builds the CLI invocation. Codex resumes with
// `codex resume <id>`.
func (a *CodexAdapter) LaunchCommand(resumeID string) string {
	if resumeID != "" {
		return fmt.Sprintf("%s resume %s", a.command, resumeID)
	}
	return a.command
}

// PostInitialize is a no-op for codex.
func (a *CodexAdapter) PostInitialize(string) error { return nil }

func (a *CodexAdapter) DetectReady(backend session.Backend, name string) bool {
	pane := backend.CapturePane(name, detectTailLines)
	if pane == "" || matchAny(pane, a.errorPatterns) || matchAnyRegexp(pane, a.exitPatterns) {
		return false
	}
	return matchAny(pane, a.readyPatterns)
}

func (a *CodexAdapter) DetectIdle(ctx context.Context, backend session.Backend, name string, timeout time.Duration) bool {
	return pollIdle(ctx, backend, name, a.readyPatterns, a.exitPatterns, timeout)
}

func (a *CodexAdapter) InjectPrompt(backend session.Backend, name, content string) error {
	return injectPlain(backend, name, content)
}

func (a *CodexAdapter) ParseResponse(paneText string) string {
	lines := strings.Split(paneText, "\n")
	start := 0
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "> ") {
			start = i + 1
			break
		}
	}
	var out []string
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || matchAny(trimmed, a.readyPatterns) {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func (a *CodexAdapter) ReadyPatterns() []string        { return a.readyPatterns }
func (a *CodexAdapter) ErrorPatterns() []string        { return a.errorPatterns }
func (a *CodexAdapter) ExitPatterns() []*regexp.Regexp { return a.exitPatterns }
