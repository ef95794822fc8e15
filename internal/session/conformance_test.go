package session_test

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewly-ai/crewly/internal/pty"
	"github.com/crewly-ai/crewly/internal/session"
	"github.com/crewly-ai/crewly/internal/tmux"
)

// backendConformance runs the Backend contract against an implementation.
// All three implementations (tmux, pty, Double) must behave identically for
// these operations so tests written against the Double stay honest.
func backendConformance(t *testing.T, newBackend func(t *testing.T) session.Backend) {
	t.Run("create then has then kill", func(t *testing.T) {
		b := newBackend(t)
		defer b.Destroy()

		name := "crewly-conformance-a"
		require.NoError(t, b.CreateSession(name, session.CreateOptions{}))

		exists, err := b.HasSession(name)
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, b.KillSession(name))
		exists, err = b.HasSession(name)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		b := newBackend(t)
		defer b.Destroy()

		name := "crewly-conformance-b"
		require.NoError(t, b.CreateSession(name, session.CreateOptions{}))
		err := b.CreateSession(name, session.CreateOptions{})
		assert.ErrorIs(t, err, session.ErrDuplicateSession)
	})

	t.Run("kill is idempotent", func(t *testing.T) {
		b := newBackend(t)
		defer b.Destroy()

		assert.NoError(t, b.KillSession("never-existed"))
		assert.NoError(t, b.KillSession("never-existed"))
	})

	t.Run("capture missing session returns empty", func(t *testing.T) {
		b := newBackend(t)
		defer b.Destroy()

		assert.Empty(t, b.CapturePane("missing", 50))
		assert.Empty(t, b.RawHistory("missing"))
	})

	t.Run("input ops tolerate missing sessions", func(t *testing.T) {
		b := newBackend(t)
		defer b.Destroy()

		assert.NoError(t, b.SendText("missing", "hello"))
		assert.NoError(t, b.SendEnter("missing"))
		assert.NoError(t, b.SendEscape("missing"))
		assert.NoError(t, b.ClearCommandLine("missing"))
	})

	t.Run("list returns live sessions", func(t *testing.T) {
		b := newBackend(t)
		defer b.Destroy()

		require.NoError(t, b.CreateSession("crewly-conformance-c", session.CreateOptions{}))
		names, err := b.ListSessions()
		require.NoError(t, err)
		assert.Contains(t, names, "crewly-conformance-c")
	})
}

func TestDoubleConformance(t *testing.T) {
	backendConformance(t, func(t *testing.T) session.Backend {
		return session.NewDouble()
	})
}

func TestTmuxConformance(t *testing.T) {
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not installed")
	}
	backendConformance(t, func(t *testing.T) session.Backend {
		return tmux.NewTmux()
	})
}

func TestPTYConformance(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available")
	}
	backendConformance(t, func(t *testing.T) session.Backend {
		return pty.NewBackend()
	})
}
