package runtime

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/crewly-ai/crewly/internal/session"
)

// injectSettle is the pause between typing a prompt and pressing Enter,
// giving slow TUIs time to register the pasted text.
const injectSettle = 100 * time.Millisecond

// heredocMarker delimits here-document wrapped commands.
const heredocMarker = "CREWLY_EOF"

// injectPlain types content and presses Enter. This is the delivery path
// for interactive TUI runtimes.
func injectPlain(backend session.Backend, name, content string) error {
	if err := backend.SendText(name, content); err != nil {
		return fmt.Errorf("injecting prompt: %w", err)
	}
	time.Sleep(injectSettle)
	if err := backend.SendEnter(name); err != nil {
		return fmt.Errorf("submitting prompt: %w", err)
	}
	return nil
}

// needsShellWrapping reports whether content is unsafe to type directly at
// a shell prompt: embedded newlines would execute line-by-line, and quoting
// characters would be reinterpreted.
func needsShellWrapping(content string) bool {
	return strings.ContainsAny(content, "\n`$\\\"'")
}

// wrapShellCommand makes arbitrary content safe to type at a shell prompt.
// Preferred form is a here-document; if the content contains the heredoc
// marker itself, fall back to base64.
func wrapShellCommand(content string) string {
	if !strings.Contains(content, heredocMarker) {
		return fmt.Sprintf("bash <<'%s'\n%s\n%s", heredocMarker, content, heredocMarker)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	return fmt.Sprintf("echo %s | base64 -d | bash", encoded)
}
