package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*StateStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session-state.json")
	store := NewStateStore(path, nil)
	t.Cleanup(store.Flush)
	return store, path
}

func TestSaveAndRestoreRoundTrip(t *testing.T) {
	store, path := newTestStore(t)

	store.RegisterSession("agent-1", CreateOptions{
		WorkDir: "/work/a",
		Command: "bash",
		Args:    []string{"-l"},
		Env:     map[string]string{"FOO": "bar"},
	}, "claude-code", "developer", "team-1", "member-1")
	store.RegisterSession("agent-2", CreateOptions{
		WorkDir: "/work/b",
		Command: "zsh",
	}, "claude-code", "reviewer", "", "")
	require.NoError(t, store.SaveState())

	// Fresh store simulates a process restart.
	restoredStore := NewStateStore(path, nil)
	backend := NewDouble()
	count, err := restoredStore.RestoreState(backend)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, name := range []string{"agent-1", "agent-2"} {
		exists, err := backend.HasSession(name)
		require.NoError(t, err)
		assert.True(t, exists, name)
		assert.True(t, restoredStore.WasRestored(name), name)
	}

	opts, ok := backend.Options("agent-1")
	require.True(t, ok)
	assert.Equal(t, "/work/a", opts.WorkDir)
	assert.Equal(t, "bash", opts.Command)
	assert.Equal(t, []string{"-l"}, opts.Args)
	assert.Equal(t, map[string]string{"FOO": "bar"}, opts.Env)
}

func TestSnapshotReflectsLatestRegistration(t *testing.T) {
	store, path := newTestStore(t)

	store.RegisterSession("agent-1", CreateOptions{WorkDir: "/old"}, "claude-code", "developer", "", "")
	store.UnregisterSession("agent-1")
	store.RegisterSession("agent-1", CreateOptions{WorkDir: "/new"}, "gemini-cli", "tester", "t2", "m2")
	require.NoError(t, store.SaveState())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Version  int             `json:"version"`
		Sessions []PersistedInfo `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 1, doc.Version)
	require.Len(t, doc.Sessions, 1)
	assert.Equal(t, "/new", doc.Sessions[0].Cwd)
	assert.Equal(t, "gemini-cli", doc.Sessions[0].RuntimeType)
	assert.Equal(t, "tester", doc.Sessions[0].Role)
}

func TestRestoreUnknownVersionIsSkipped(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"sessions":[{"name":"x"}]}`), 0o644))

	backend := NewDouble()
	count, err := store.RestoreState(backend)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, backend.SessionCount())
}

func TestRestoreMissingFileIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	count, err := store.RestoreState(NewDouble())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRestoreSkipsFailedSessions(t *testing.T) {
	store, path := newTestStore(t)

	store.RegisterSession("taken", CreateOptions{}, "shell", "", "", "")
	store.RegisterSession("fresh", CreateOptions{}, "shell", "", "", "")
	require.NoError(t, store.SaveState())

	backend := NewDouble()
	require.NoError(t, backend.CreateSession("taken", CreateOptions{}))

	restoredStore := NewStateStore(path, nil)
	count, err := restoredStore.RestoreState(backend)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, restoredStore.WasRestored("taken"))
	assert.True(t, restoredStore.WasRestored("fresh"))
}

func TestUpdateSessionIDPersists(t *testing.T) {
	store, path := newTestStore(t)

	store.RegisterSession("agent-1", CreateOptions{}, "claude-code", "", "", "")
	store.UpdateSessionID("agent-1", "conv-abc")
	require.NoError(t, store.SaveState())

	restoredStore := NewStateStore(path, nil)
	_, err := restoredStore.LoadMetadata()
	require.NoError(t, err)

	info, ok := restoredStore.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, "conv-abc", info.RuntimeSessionID)

	// Resume handles only apply to sessions that went through RestoreState.
	assert.False(t, restoredStore.WasRestored("agent-1"))
}

func TestClearStateAndMetadata(t *testing.T) {
	store, path := newTestStore(t)

	store.RegisterSession("agent-1", CreateOptions{}, "shell", "", "", "")
	require.NoError(t, store.SaveState())
	store.Flush()
	require.NoError(t, store.ClearStateAndMetadata())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, store.List())
}

func TestUpdateSessionIDUnknownNameIgnored(t *testing.T) {
	store, _ := newTestStore(t)
	store.UpdateSessionID("ghost", "id-1")
	_, ok := store.Get("ghost")
	assert.False(t, ok)
}
