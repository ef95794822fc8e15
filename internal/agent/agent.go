// Package agent manages agent registration: launching a CLI runtime inside
// an already-created terminal session, waiting for readiness, and sending
// prompts with delivery confirmation.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crewly-ai/crewly/internal/constants"
	"github.com/crewly-ai/crewly/internal/runtime"
	"github.com/crewly-ai/crewly/internal/session"
)

// SendResult reports the outcome of a message injection. Success means the
// prompt reached the session's input stream, not that a response arrived.
type SendResult struct {
	Success bool
	Error   string
}

// MemoryHooks is the memory subsystem's boundary as seen by registration.
// It is invoked at session start and end; nil hooks disable both.
type MemoryHooks interface {
	// StartupBriefing assembles the context injected as the agent's first
	// prompt after initialization. Empty means nothing to inject.
	StartupBriefing(agentID, role, projectPath string) (string, error)

	// RecordSessionStart notes the agent's activation in the daily log.
	RecordSessionStart(agentID, role, projectPath string) error

	// RecordSessionEnd persists the session summary.
	RecordSessionEnd(agentID, role, projectPath, summary string) error
}

// Manager launches and communicates with agents hosted in sessions. It
// coordinates the session backend, the state store, and the runtime
// adapters, but owns no collections of its own.
type Manager struct {
	backend  session.Backend
	store    *session.StateStore
	registry *runtime.Registry
	hooks    MemoryHooks
	logger   *slog.Logger
}

// NewManager creates an agent manager.
func NewManager(backend session.Backend, store *session.StateStore, registry *runtime.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend:  backend,
		store:    store,
		registry: registry,
		logger:   logger.With("component", "agent"),
	}
}

// WithMemoryHooks attaches the memory subsystem's session start/end hooks.
func (m *Manager) WithMemoryHooks(hooks MemoryHooks) *Manager {
	m.hooks = hooks
	return m
}

// CreateAgentSession spawns the shell session that will host an agent and
// registers its metadata for restart recovery.
func (m *Manager) CreateAgentSession(name string, opts session.CreateOptions, rt runtime.Type, role, teamID, memberID string) error {
	if err := m.backend.CreateSession(name, opts); err != nil {
		return fmt.Errorf("creating agent session %s: %w", name, err)
	}
	m.store.RegisterSession(name, opts, string(rt), role, teamID, memberID)
	return nil
}

// InitializeAgent launches the CLI runtime inside the already-created shell
// session and blocks until the adapter reports ready or the init deadline
// elapses.
//
// Restore + resume is two-phase: the state layer recreated the process with
// its original shell command; only here, if the session is flagged restored
// and a runtime session ID was recorded, does the launch command gain the
// adapter's resume flag.
func (m *Manager) InitializeAgent(ctx context.Context, name, role string, rt runtime.Type) error {
	adapter, err := m.registry.Get(rt)
	if err != nil {
		return err
	}

	exists, err := m.backend.HasSession(name)
	if err != nil {
		return fmt.Errorf("checking session %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("session not found: %s", name)
	}

	info, _ := m.store.Get(name)

	if err := adapter.PostInitialize(info.Cwd); err != nil {
		m.logger.Warn("post-initialize hook failed", "session", name, "error", err)
	}

	resumeID := ""
	if m.store.WasRestored(name) && info.RuntimeSessionID != "" {
		resumeID = info.RuntimeSessionID
		m.logger.Info("resuming runtime session", "session", name, "runtimeSessionId", resumeID)
	}

	if launch := adapter.LaunchCommand(resumeID); launch != "" {
		if err := m.backend.SendText(name, launch); err != nil {
			return fmt.Errorf("launching runtime in %s: %w", name, err)
		}
		if err := m.backend.SendEnter(name); err != nil {
			return fmt.Errorf("launching runtime in %s: %w", name, err)
		}
	}

	if err := m.waitForReady(ctx, adapter, name, constants.AgentInitTimeout); err != nil {
		return err
	}

	m.logger.Info("agent initialized", "session", name, "role", role, "runtime", rt)

	if m.hooks != nil {
		if err := m.hooks.RecordSessionStart(name, role, info.Cwd); err != nil {
			m.logger.Warn("recording session start failed", "session", name, "error", err)
		}
		briefing, err := m.hooks.StartupBriefing(name, role, info.Cwd)
		if err != nil {
			m.logger.Warn("assembling startup briefing failed", "session", name, "error", err)
		} else if briefing != "" {
			if err := adapter.InjectPrompt(m.backend, name, briefing); err != nil {
				m.logger.Warn("injecting startup briefing failed", "session", name, "error", err)
			}
		}
	}
	return nil
}

// WaitForAgentReady blocks until the runtime is idle at its prompt or the
// timeout elapses. Returns false on timeout; adapter probe errors count as
// not-ready.
func (m *Manager) WaitForAgentReady(ctx context.Context, name string, timeout time.Duration, rt runtime.Type) bool {
	adapter, err := m.registry.Get(rt)
	if err != nil {
		m.logger.Warn("unknown runtime for readiness wait", "session", name, "runtime", rt)
		return false
	}
	return adapter.DetectIdle(ctx, m.backend, name, timeout)
}

// SendMessageToAgent validates the session and injects the prompt. Success
// reflects injection only — response handling belongs to the caller.
func (m *Manager) SendMessageToAgent(name, content string, rt runtime.Type) SendResult {
	adapter, err := m.registry.Get(rt)
	if err != nil {
		return SendResult{Error: err.Error()}
	}

	exists, err := m.backend.HasSession(name)
	if err != nil {
		return SendResult{Error: fmt.Sprintf("checking session: %v", err)}
	}
	if !exists {
		return SendResult{Error: "Session not found"}
	}

	if err := adapter.InjectPrompt(m.backend, name, content); err != nil {
		return SendResult{Error: err.Error()}
	}
	return SendResult{Success: true}
}

// FinalizeAgent records the session's end with the memory subsystem and
// tears the session down.
func (m *Manager) FinalizeAgent(name, role, summary string) error {
	info, _ := m.store.Get(name)
	if m.hooks != nil {
		if err := m.hooks.RecordSessionEnd(name, role, info.Cwd, summary); err != nil {
			m.logger.Warn("recording session end failed", "session", name, "error", err)
		}
	}
	if err := m.backend.KillSession(name); err != nil {
		return fmt.Errorf("killing session %s: %w", name, err)
	}
	m.store.UnregisterSession(name)
	return nil
}

// waitForReady polls DetectReady until the deadline.
func (m *Manager) waitForReady(ctx context.Context, adapter runtime.Adapter, name string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if adapter.DetectReady(m.backend, name) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(constants.AgentReadyPollInterval):
		}
	}
	return fmt.Errorf("agent in %s not ready after %s", name, timeout)
}
