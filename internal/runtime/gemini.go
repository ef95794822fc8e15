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

// GeminiAdapter drives the gemini-cli runtime. Gemini renders a bordered
// input box when idle, so marker matching alone is reliable and no
// interactive probe is needed.
type GeminiAdapter struct {
	command       string
	readyPatterns []string
	errorPatterns []string
	exitPatterns  []*regexp.Regexp
}

// NewGeminiAdapter creates the gemini-cli adapter. GEMINI_CMD overrides
// the CLI command.
func NewGeminiAdapter() *GeminiAdapter {
	return &GeminiAdapter{
		command: config.RuntimeCommand(config.GeminiCmdEnv, "gemini"),
		readyPatterns: []string{
			"Type your message",
			"(esc to cancel",
			"│ > ",
		},
		errorPatterns: []string{
			"command not found: gemini",
			"gemini: command not found",
			"Quota exceeded",
			"API Error",
		},
		exitPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*\$\s*$`),
		},
	}
}

var _ Adapter = (*GeminiAdapter)(nil)

func (a *GeminiAdapter) Type() Type { return TypeGeminiCLI }

// LaunchCommand builds the CLI invocation. Gemini resumes with
// --session <id>.
func (a *GeminiAdapter) LaunchCommand(resumeID string) string {
	if resumeID != "" {
		return fmt.Sprintf("%s --session %s", a.command, resumeID)
	}
	return a.command
}

// PostInitialize is a no-op: gemini-cli needs no ancillary project config.
func (a *GeminiAdapter) PostInitialize(string) error { return nil }

func (a *GeminiAdapter) DetectReady(backend session.Backend, name string) bool {
	pane := backend.CapturePane(name, detectTailLines)
	if pane == "" || matchAny(pane, a.errorPatterns) || matchAnyRegexp(pane, a.exitPatterns) {
		return false
	}
	return matchAny(pane, a.readyPatterns)
}

func (a *GeminiAdapter) DetectIdle(ctx context.Context, backend session.Backend, name string, timeout time.Duration) bool {
	return pollIdle(ctx, backend, name, a.readyPatterns, a.exitPatterns, timeout)
}

func (a *GeminiAdapter) InjectPrompt(backend session.Backend, name, content string) error {
	return injectPlain(backend, name, content)
}

// ParseResponse returns the lines after the last echoed input, minus the
// input box chrome.
func (a *GeminiAdapter) ParseResponse(paneText string) string {
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
		if strings.HasPrefix(trimmed, "╭") || strings.HasPrefix(trimmed, "╰") || strings.HasPrefix(trimmed, "│") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func (a *GeminiAdapter) ReadyPatterns() []string        { return a.readyPatterns }
func (a *GeminiAdapter) ErrorPatterns() []string        { return a.errorPatterns }
func (a *GeminiAdapter) ExitPatterns() []*regexp.Regexp { return a.exitPatterns }
