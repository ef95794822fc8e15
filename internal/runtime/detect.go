package runtime

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/crewly-ai/crewly/internal/constants"
	"github.com/crewly-ai/crewly/internal/session"
)

// detectTailLines is how much pane to capture for pattern matching.
const detectTailLines = 50

// matchAny reports whether any literal pattern occurs in text.
func matchAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// matchAnyRegexp reports whether any regex matches text.
func matchAnyRegexp(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// pollIdle waits for readyPatterns to reappear stably after a prompt was
// sent. "Stably" means the pattern is present on two consecutive polls, so
// a prompt glimpsed mid-render does not count. A match on exitPatterns means
// the runtime fell back to the shell; the poll ends immediately instead of
// burning the rest of the timeout. Returns false on timeout, exit, or
// cancellation. Probe errors are treated as not-ready.
func pollIdle(ctx context.Context, backend session.Backend, name string, readyPatterns []string, exitPatterns []*regexp.Regexp, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	seenReady := false

	for time.Now().Before(deadline) {
		pane := backend.CapturePane(name, detectTailLines)
		if pane != "" && matchAnyRegexp(pane, exitPatterns) {
			return false
		}
		if matchAny(pane, readyPatterns) {
			if seenReady {
				return true // stable across one full poll cycle
			}
			seenReady = true
		} else {
			seenReady = false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(constants.AgentReadyPollInterval):
		}
	}
	return false
}

// slashProbe performs the interactive-palette probe used by TUI runtimes:
// clear the input line, measure the pane, type "/", wait for the palette to
// render, measure again. Output growth beyond a small threshold means the
// runtime is interactive and accepting input. The probe always dismisses
// the palette with Escape then Ctrl-U — never Ctrl-C, which would interrupt
// the CLI itself.
func slashProbe(backend session.Backend, name string) bool {
	if err := backend.ClearCommandLine(name); err != nil {
		return false
	}
	before := backend.CapturePane(name, detectTailLines)

	if err := backend.SendText(name, "/"); err != nil {
		return false
	}
	time.Sleep(constants.SlashProbeSettle)
	after := backend.CapturePane(name, detectTailLines)

	// Dismiss the slash palette regardless of outcome.
	_ = backend.SendEscape(name)
	_ = backend.ClearCommandLine(name)

	return len(after)-len(before) > constants.SlashProbeGrowth
}
