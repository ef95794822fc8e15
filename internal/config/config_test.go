package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewly-ai/crewly/internal/constants"
)

func TestDefaultMatchesConstants(t *testing.T) {
	cfg := Default()
	assert.Equal(t, constants.MaxQueueSize, cfg.MaxQueueSize)
	assert.Equal(t, constants.MaxHistorySize, cfg.MaxHistorySize)
	assert.Equal(t, constants.MaxRequeueRetries, cfg.MaxRequeueRetries)
	assert.Equal(t, constants.AgentReadyTimeout, cfg.AgentReadyTimeout.Duration)
	assert.Equal(t, constants.DefaultMessageTimeout, cfg.MessageTimeout.Duration)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadFrom(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_queue_size = 10
message_timeout = "45s"
agent_ready_poll_interval = "250ms"
prompt_detection_timeout = "90s"
`), 0o644))

	cfg, err := loadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxQueueSize)
	assert.Equal(t, 45*time.Second, cfg.MessageTimeout.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.AgentReadyPollInterval.Duration)
	assert.Equal(t, 90*time.Second, cfg.PromptDetectionTimeout.Duration)

	// Everything not mentioned keeps its default.
	assert.Equal(t, constants.MaxHistorySize, cfg.MaxHistorySize)
	assert.Equal(t, constants.AgentReadyTimeout, cfg.AgentReadyTimeout.Duration)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`message_timeout = "soon"`), 0o644))

	_, err := loadFrom(path)
	assert.Error(t, err)
}

func TestCrewlyHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CREWLY_HOME", dir)

	assert.Equal(t, dir, CrewlyHome())
	assert.Equal(t, filepath.Join(dir, "session-state.json"), SessionStatePath())
	assert.Equal(t, filepath.Join(dir, "scheduled-messages.json"), ScheduledMessagesPath())
	assert.Equal(t, filepath.Join(dir, "agents", "a1"), AgentDir("a1"))
	assert.Equal(t, filepath.Join(dir, "agents", "a1", "sessions"), AgentSessionsDir("a1"))
}

func TestProjectDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/work/repo", ".crewly"), ProjectDir("/work/repo"))
}

func TestRuntimeCommand(t *testing.T) {
	t.Setenv("CLAUDE_CMD", "")
	assert.Equal(t, "claude", RuntimeCommand(ClaudeCmdEnv, "claude"))

	t.Setenv("CLAUDE_CMD", "/usr/local/bin/claude-next")
	assert.Equal(t, "/usr/local/bin/claude-next", RuntimeCommand(ClaudeCmdEnv, "claude"))
}
