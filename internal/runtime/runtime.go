// Package runtime provides per-CLI-tool adapters: readiness and idle
// detection, prompt injection, and launch/resume command construction for
// each supported agent runtime (claude-code, gemini-cli, codex-cli, shell).
package runtime

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/crewly-ai/crewly/internal/session"
)

// Type identifies the kind of CLI tool hosted in a session.
type Type string

const (
	TypeClaudeCode Type = "claude-code"
	TypeGeminiCLI  Type = "gemini-cli"
	TypeCodexCLI   Type = "codex-cli"
	TypeShell      Type = "shell"
)

// State describes a session's runtime lifecycle as driven by adapter
// detection.
type State string

const (
	StateStarted State = "started"
	StateActive  State = "active"
	StateIdle    State = "idle"
	StateError   State = "error"
)

// Adapter is the per-runtime capability set. Implementations share the
// pattern-polling machinery in detect.go and differ in launch commands,
// ready probes, and response markers.
type Adapter interface {
	// Type returns the runtime identifier.
	Type() Type

	// LaunchCommand builds the command typed into the shell session to
	// start the CLI. A non-empty resumeID adds the runtime's resume flag;
	// the flag is never part of the persisted shell command.
	LaunchCommand(resumeID string) string

	// PostInitialize runs after launch, before readiness. Adapters may
	// write ancillary config (e.g. an MCP descriptor) into workDir.
	PostInitialize(workDir string) error

	// DetectReady probes whether the runtime is at its prompt right now.
	DetectReady(backend session.Backend, name string) bool

	// DetectIdle polls until the runtime returns to its prompt after a
	// message was sent, or the timeout elapses. Cancellable via ctx.
	DetectIdle(ctx context.Context, backend session.Backend, name string, timeout time.Duration) bool

	// InjectPrompt delivers a prompt into the session's input stream.
	InjectPrompt(backend session.Backend, name, content string) error

	// ParseResponse extracts the latest response text from pane output.
	ParseResponse(paneText string) string

	// ReadyPatterns are literal substrings whose presence means the
	// runtime is at its prompt.
	ReadyPatterns() []string

	// ErrorPatterns are literal substrings indicating a runtime error.
	ErrorPatterns() []string

	// ExitPatterns are regexes indicating the runtime exited back to the
	// shell.
	ExitPatterns() []*regexp.Regexp
}

// Registry maps runtime types to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Type]Adapter
}

// NewRegistry creates a registry with all built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[Type]Adapter)}
	for _, a := range []Adapter{
		NewClaudeAdapter(),
		NewGeminiAdapter(),
		NewCodexAdapter(),
		NewShellAdapter(),
	} {
		r.adapters[a.Type()] = a
	}
	return r
}

// Get returns the adapter for a runtime type.
func (r *Registry) Get(t Type) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("unknown runtime type: %s", t)
	}
	return a, nil
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Type()] = a
}

// Types returns the registered runtime types.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	return types
}
