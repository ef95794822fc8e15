package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewly-ai/crewly/internal/runtime"
	"github.com/crewly-ai/crewly/internal/session"
)

// fakeAdapter is a scriptable runtime.Adapter: always-ready by default,
// records every launch command and injected prompt.
type fakeAdapter struct {
	mu       sync.Mutex
	ready    bool
	launches []string
	injected []string
}

const fakeRuntime runtime.Type = "fake-cli"

func newFakeAdapter() *fakeAdapter { return &fakeAdapter{ready: true} }

func (f *fakeAdapter) Type() runtime.Type { return fakeRuntime }

func (f *fakeAdapter) LaunchCommand(resumeID string) string {
	cmd := "fake"
	if resumeID != "" {
		cmd = fmt.Sprintf("fake --resume %s", resumeID)
	}
	f.mu.Lock()
	f.launches = append(f.launches, cmd)
	f.mu.Unlock()
	return cmd
}

func (f *fakeAdapter) PostInitialize(string) error { return nil }

func (f *fakeAdapter) DetectReady(session.Backend, string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeAdapter) DetectIdle(_ context.Context, _ session.Backend, _ string, _ time.Duration) bool {
	return f.DetectReady(nil, "")
}

func (f *fakeAdapter) InjectPrompt(_ session.Backend, _, content string) error {
	f.mu.Lock()
	f.injected = append(f.injected, content)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) ParseResponse(string) string    { return "" }
func (f *fakeAdapter) ReadyPatterns() []string        { return nil }
func (f *fakeAdapter) ErrorPatterns() []string        { return nil }
func (f *fakeAdapter) ExitPatterns() []*regexp.Regexp { return nil }

func (f *fakeAdapter) Launches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.launches...)
}

func (f *fakeAdapter) Injected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.injected...)
}

// fakeHooks records memory hook invocations.
type fakeHooks struct {
	mu       sync.Mutex
	briefing string
	starts   []string
	ends     []string
}

func (h *fakeHooks) StartupBriefing(agentID, _, _ string) (string, error) {
	return h.briefing, nil
}

func (h *fakeHooks) RecordSessionStart(agentID, _, _ string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, agentID)
	return nil
}

func (h *fakeHooks) RecordSessionEnd(agentID, _, _, summary string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends = append(h.ends, agentID+": "+summary)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *session.Double, *session.StateStore, *fakeAdapter) {
	t.Helper()
	backend := session.NewDouble()
	store := session.NewStateStore(filepath.Join(t.TempDir(), "state.json"), nil)
	t.Cleanup(store.Flush)
	registry := runtime.NewRegistry()
	adapter := newFakeAdapter()
	registry.Register(adapter)
	return NewManager(backend, store, registry, nil), backend, store, adapter
}

func TestCreateAgentSessionRegisters(t *testing.T) {
	m, backend, store, _ := newTestManager(t)

	require.NoError(t, m.CreateAgentSession("agent-1", session.CreateOptions{WorkDir: "/work"},
		fakeRuntime, "developer", "team-1", "member-1"))

	exists, err := backend.HasSession("agent-1")
	require.NoError(t, err)
	assert.True(t, exists)

	info, ok := store.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, "/work", info.Cwd)
	assert.Equal(t, string(fakeRuntime), info.RuntimeType)
	assert.Equal(t, "developer", info.Role)
	assert.Equal(t, "team-1", info.TeamID)
	assert.Equal(t, "member-1", info.MemberID)
}

func TestCreateAgentSessionDuplicate(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	require.NoError(t, m.CreateAgentSession("agent-1", session.CreateOptions{}, fakeRuntime, "", "", ""))
	err := m.CreateAgentSession("agent-1", session.CreateOptions{}, fakeRuntime, "", "", "")
	assert.ErrorIs(t, err, session.ErrDuplicateSession)
}

func TestInitializeAgentLaunchesAndBriefs(t *testing.T) {
	m, backend, _, adapter := newTestManager(t)
	hooks := &fakeHooks{briefing: "welcome back"}
	m.WithMemoryHooks(hooks)

	require.NoError(t, m.CreateAgentSession("agent-1", session.CreateOptions{}, fakeRuntime, "developer", "", ""))
	require.NoError(t, m.InitializeAgent(context.Background(), "agent-1", "developer", fakeRuntime))

	// The launch command was typed into the session and submitted.
	assert.Contains(t, backend.TextLog("agent-1"), "fake")
	assert.Contains(t, backend.KeyLog("agent-1"), "Enter")

	assert.Equal(t, []string{"agent-1"}, hooks.starts)
	assert.Equal(t, []string{"welcome back"}, adapter.Injected())
}

func TestInitializeAgentResumesOnlyRestoredSessions(t *testing.T) {
	backend := session.NewDouble()
	path := filepath.Join(t.TempDir(), "state.json")

	// A prior run recorded a runtime session ID, then shut down.
	seed := session.NewStateStore(path, nil)
	seed.RegisterSession("agent-1", session.CreateOptions{}, string(fakeRuntime), "developer", "", "")
	seed.UpdateSessionID("agent-1", "conv-42")
	require.NoError(t, seed.SaveState())
	seed.Flush()

	store := session.NewStateStore(path, nil)
	t.Cleanup(store.Flush)
	count, err := store.RestoreState(backend)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	registry := runtime.NewRegistry()
	adapter := newFakeAdapter()
	registry.Register(adapter)
	m := NewManager(backend, store, registry, nil)

	require.NoError(t, m.InitializeAgent(context.Background(), "agent-1", "developer", fakeRuntime))
	assert.Equal(t, []string{"fake --resume conv-42"}, adapter.Launches())
}

func TestInitializeAgentNoResumeWithoutRestore(t *testing.T) {
	m, _, store, adapter := newTestManager(t)

	require.NoError(t, m.CreateAgentSession("agent-1", session.CreateOptions{}, fakeRuntime, "", "", ""))
	// The ID is recorded but the session was created fresh, not restored.
	store.UpdateSessionID("agent-1", "conv-42")

	require.NoError(t, m.InitializeAgent(context.Background(), "agent-1", "", fakeRuntime))
	assert.Equal(t, []string{"fake"}, adapter.Launches())
}

func TestInitializeAgentMissingSession(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	err := m.InitializeAgent(context.Background(), "ghost", "", fakeRuntime)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}

func TestInitializeAgentNotReadyCancelled(t *testing.T) {
	m, _, _, adapter := newTestManager(t)
	adapter.ready = false

	require.NoError(t, m.CreateAgentSession("agent-1", session.CreateOptions{}, fakeRuntime, "", "", ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.InitializeAgent(ctx, "agent-1", "", fakeRuntime)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendMessageToAgent(t *testing.T) {
	m, _, _, adapter := newTestManager(t)
	require.NoError(t, m.CreateAgentSession("agent-1", session.CreateOptions{}, fakeRuntime, "", "", ""))

	res := m.SendMessageToAgent("agent-1", "do the thing", fakeRuntime)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"do the thing"}, adapter.Injected())

	res = m.SendMessageToAgent("ghost", "hello", fakeRuntime)
	assert.False(t, res.Success)
	assert.Equal(t, "Session not found", res.Error)
}

func TestWaitForAgentReadyUnknownRuntime(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	assert.False(t, m.WaitForAgentReady(context.Background(), "agent-1", time.Second, "emacs"))
}

func TestFinalizeAgent(t *testing.T) {
	m, backend, store, _ := newTestManager(t)
	hooks := &fakeHooks{}
	m.WithMemoryHooks(hooks)

	require.NoError(t, m.CreateAgentSession("agent-1", session.CreateOptions{}, fakeRuntime, "developer", "", ""))
	require.NoError(t, m.FinalizeAgent("agent-1", "developer", "shipped the feature"))

	exists, err := backend.HasSession("agent-1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, ok := store.Get("agent-1")
	assert.False(t, ok)
	assert.Equal(t, []string{"agent-1: shipped the feature"}, hooks.ends)
}
