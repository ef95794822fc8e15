// Package config provides persistence paths, environment overrides, and
// the optional config.toml tunables for the orchestrator.
package config

import (
	"os"
	"path/filepath"
)

// HomeDirName is the per-user persistence root, created under $HOME unless
// CREWLY_HOME overrides it.
const HomeDirName = ".crewly"

// CrewlyHome returns the persistence root (~/.crewly by default).
// CREWLY_HOME overrides the default for tests and non-standard installs.
func CrewlyHome() string {
	if dir := os.Getenv("CREWLY_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Last resort: relative to cwd. Everything downstream treats
		// persistence as best-effort anyway.
		return HomeDirName
	}
	return filepath.Join(home, HomeDirName)
}

// SessionStatePath returns the path of the persisted session snapshot.
func SessionStatePath() string {
	return filepath.Join(CrewlyHome(), "session-state.json")
}

// ScheduledMessagesPath returns the path of the scheduler's store.
func ScheduledMessagesPath() string {
	return filepath.Join(CrewlyHome(), "scheduled-messages.json")
}

// AgentDir returns the per-agent memory directory (~/.crewly/agents/{id}).
func AgentDir(agentID string) string {
	return filepath.Join(CrewlyHome(), "agents", agentID)
}

// AgentSessionsDir returns the per-agent session summary directory.
func AgentSessionsDir(agentID string) string {
	return filepath.Join(AgentDir(agentID), "sessions")
}

// ProjectDir returns the per-project memory directory ({project}/.crewly).
func ProjectDir(projectPath string) string {
	return filepath.Join(projectPath, HomeDirName)
}

// EnsureDir creates dir (and parents) if missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
