package config

import "os"

// Per-runtime command overrides. Each runtime's CLI binary can be replaced
// via an environment variable, e.g. CLAUDE_CMD=/opt/claude/bin/claude.
const (
	ClaudeCmdEnv = "CLAUDE_CMD"
	GeminiCmdEnv = "GEMINI_CMD"
	CodexCmdEnv  = "CODEX_CMD"
	ShellCmdEnv  = "CREWLY_SHELL"
)

// RuntimeCommand resolves the CLI command for a runtime, preferring the
// environment override and falling back to the given default.
func RuntimeCommand(envVar, fallback string) string {
	if cmd := os.Getenv(envVar); cmd != "" {
		return cmd
	}
	return fallback
}
