// Package constants defines timeouts, limits, and well-known names shared
// across the orchestrator. Keeping them in one place makes the timing
// behavior auditable and lets the config layer override the tunable ones.
package constants

import "time"

// OrchestratorSessionName is the session name of the distinguished agent
// that receives all user messages and delegates to workers.
const OrchestratorSessionName = "agentmux-orc"

// Queue limits.
const (
	// MaxQueueSize bounds the number of outstanding (pending) messages.
	MaxQueueSize = 100

	// MaxHistorySize bounds the completed/failed/cancelled history.
	MaxHistorySize = 50

	// MaxRequeueRetries is the number of requeues allowed before a message
	// is permanently failed.
	MaxRequeueRetries = 3
)

// Dispatch timing.
const (
	// AgentReadyTimeout bounds the pre-dispatch readiness wait.
	AgentReadyTimeout = 60 * time.Second

	// AgentReadyPollInterval is the pane poll cadence during readiness and
	// idle detection, and the reschedule delay for the orchestrator gate.
	AgentReadyPollInterval = 2 * time.Second

	// PromptDetectionTimeout bounds idle detection after a prompt is sent,
	// including the processor's non-fatal post-completion idle wait.
	PromptDetectionTimeout = 120 * time.Second

	// DefaultMessageTimeout is the response correlation window per message.
	DefaultMessageTimeout = 3 * time.Minute

	// InterMessageDelay separates two consecutive dispatches.
	InterMessageDelay = 100 * time.Millisecond
)

// Agent startup timing.
const (
	// AgentInitTimeout is the global deadline for a freshly launched CLI
	// to become ready inside its shell session.
	AgentInitTimeout = 90 * time.Second

	// SlashProbeSettle is how long the claude-code ready probe waits after
	// injecting "/" before re-capturing the pane.
	SlashProbeSettle = 500 * time.Millisecond

	// SlashProbeGrowth is the minimum output growth (in bytes) that counts
	// as the slash palette having opened.
	SlashProbeGrowth = 20

	// SendKeysCeiling bounds any single keystroke injection.
	SendKeysCeiling = 5 * time.Second

	// CaptureCeiling bounds any single pane capture.
	CaptureCeiling = 5 * time.Second
)

// Scheduler timing.
const (
	// AutoAssignSettleDelay separates consecutive auto-assign executions.
	AutoAssignSettleDelay = 2 * time.Second
)

// Memory limits.
const (
	// MaxSectionChars truncates each startup briefing section independently.
	MaxSectionChars = 2000

	// LearningTailChars is how much of what_worked.md / what_failed.md the
	// briefing includes, counted from the end.
	LearningTailChars = 1500
)

// SessionStateVersion is the schema version of session-state.json.
const SessionStateVersion = 1
