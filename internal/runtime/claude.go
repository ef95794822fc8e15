package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/crewly-ai/crewly/internal/config"
	"github.com/crewly-ai/crewly/internal/session"
)

// ClaudeAdapter drives the claude-code CLI. Readiness combines literal
// prompt markers with the slash-palette probe, since the TUI redraws its
// prompt box in place and marker matching alone misses some states.
type ClaudeAdapter struct {
	command       string
	readyPatterns []string
	errorPatterns []string
	exitPatterns  []*regexp.Regexp
}

// NewClaudeAdapter creates the claude-code adapter. CLAUDE_CMD overrides
// the CLI command.
func NewClaudeAdapter() *ClaudeAdapter {
	return &ClaudeAdapter{
		command: config.RuntimeCommand(config.ClaudeCmdEnv, "claude"),
		readyPatterns: []string{
			"? for shortcuts",
			"Bypassing Permissions",
			"bypass permissions",
		},
		errorPatterns: []string{
			"command not found: claude",
			"claude: command not found",
			"Credit balance is too low",
			"Invalid API key",
		},
		exitPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*\$\s*$`),
			regexp.MustCompile(`(?m)^logout$`),
		},
	}
}

var _ Adapter = (*ClaudeAdapter)(nil)

func (a *ClaudeAdapter) Type() Type { return TypeClaudeCode }

// LaunchCommand builds the CLI invocation typed into the shell. A resume ID
// adds --resume so the runtime restores its own conversational state; the
// flag is added here, at launch time, and is never persisted into the
// session's shell command.
func (a *ClaudeAdapter) LaunchCommand(resumeID string) string {
	if resumeID != "" {
		return fmt.Sprintf("%s --resume %s", a.command, resumeID)
	}
	return a.command
}

// PostInitialize writes an MCP descriptor into the project working
// directory so the CLI picks up the orchestrator's tool server. An existing
// descriptor is left alone.
func (a *ClaudeAdapter) PostInitialize(workDir string) error {
	if workDir == "" {
		return nil
	}
	path := filepath.Join(workDir, ".mcp.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	descriptor := map[string]any{
		"mcpServers": map[string]any{
			"crewly": map[string]any{
				"command": "crewly",
				"args":    []string{"mcp", "serve"},
			},
		},
	}
	data, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding mcp descriptor: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing mcp descriptor: %w", err)
	}
	return nil
}

// DetectReady checks error and exit patterns first, then prompt markers,
// then falls back to the slash-palette probe. A pane showing a bare shell
// prompt means the CLI exited; probing it would type "/" into the shell.
func (a *ClaudeAdapter) DetectReady(backend session.Backend, name string) bool {
	pane := backend.CapturePane(name, detectTailLines)
	if pane == "" {
		return false
	}
	if matchAny(pane, a.errorPatterns) || matchAnyRegexp(pane, a.exitPatterns) {
		return false
	}
	if matchAny(pane, a.readyPatterns) {
		return true
	}
	return slashProbe(backend, name)
}

func (a *ClaudeAdapter) DetectIdle(ctx context.Context, backend session.Backend, name string, timeout time.Duration) bool {
	return pollIdle(ctx, backend, name, a.readyPatterns, a.exitPatterns, timeout)
}

func (a *ClaudeAdapter) InjectPrompt(backend session.Backend, name, content string) error {
	return injectPlain(backend, name, content)
}

// ParseResponse extracts the assistant's latest output from pane text: the
// lines between the last echoed input ("> ...") and the trailing prompt
// box, with status chrome dropped.
func (a *ClaudeAdapter) ParseResponse(paneText string) string {
	lines := strings.Split(paneText, "\n")

	// Find the last echoed input line.
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
		// Drop TUI box-drawing chrome.
		if strings.HasPrefix(trimmed, "╭") || strings.HasPrefix(trimmed, "╰") || strings.HasPrefix(trimmed, "│") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func (a *ClaudeAdapter) ReadyPatterns() []string        { return a.readyPatterns }
func (a *ClaudeAdapter) ErrorPatterns() []string        { return a.errorPatterns }
func (a *ClaudeAdapter) ExitPatterns() []*regexp.Regexp { return a.exitPatterns }
