package memory

import "github.com/crewly-ai/crewly/internal/agent"

// Hooks adapts the store to the agent manager's session lifecycle: a daily
// log entry at activation, a briefing injection after readiness, and a
// session summary at teardown.
type Hooks struct {
	store *Store
}

var _ agent.MemoryHooks = (*Hooks)(nil)

// NewHooks wraps the store for the agent manager.
func NewHooks(store *Store) *Hooks {
	return &Hooks{store: store}
}

func (h *Hooks) StartupBriefing(agentID, role, projectPath string) (string, error) {
	return h.store.StartupBriefing(agentID, role, projectPath)
}

func (h *Hooks) RecordSessionStart(agentID, role, projectPath string) error {
	if projectPath == "" {
		return nil
	}
	if err := h.store.TouchAgentIndex(projectPath, agentID, role); err != nil {
		h.store.logger.Warn("updating agents index failed", "agent", agentID, "error", err)
	}
	return h.store.LogDaily(projectPath, role, agentID, "Session started")
}

func (h *Hooks) RecordSessionEnd(agentID, role, projectPath, summary string) error {
	if summary == "" {
		summary = "(no summary provided)"
	}
	if err := h.store.WriteSessionSummary(agentID, role, projectPath, summary); err != nil {
		return err
	}
	if projectPath == "" {
		return nil
	}
	return h.store.LogDaily(projectPath, role, agentID, "Session ended")
}
