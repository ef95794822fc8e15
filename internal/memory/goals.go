package memory

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/crewly-ai/crewly/internal/config"
)

const (
	goalsFile        = "goals.md"
	currentFocusFile = "current_focus.md"
	decisionsFile    = "decisions_log.md"

	// pendingOutcome is the literal placeholder a decision carries until
	// its outcome is recorded.
	pendingOutcome = "_pending_"
)

func goalsDir(projectPath string) string {
	return filepath.Join(config.ProjectDir(projectPath), "goals")
}

// AppendGoal adds an unchecked goal to the project's goal list.
func (s *Store) AppendGoal(projectPath, goal string) error {
	line := fmt.Sprintf("- [ ] %s (%s)\n",
		strings.TrimSpace(goal), time.Now().Format("2006-01-02"))
	return appendFile(filepath.Join(goalsDir(projectPath), goalsFile), line)
}

// ActiveGoals returns the goals not yet checked off.
func (s *Store) ActiveGoals(projectPath string) string {
	content := readFile(filepath.Join(goalsDir(projectPath), goalsFile))
	if content == "" {
		return ""
	}
	var active []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- [ ]") {
			active = append(active, line)
		}
	}
	return strings.Join(active, "\n")
}

// SetCurrentFocus atomically overwrites the project's current focus.
func (s *Store) SetCurrentFocus(projectPath, focus string) error {
	return writeAtomic(filepath.Join(goalsDir(projectPath), currentFocusFile), []byte(focus))
}

// CurrentFocus returns the project's current focus, or "".
func (s *Store) CurrentFocus(projectPath string) string {
	return readFile(filepath.Join(goalsDir(projectPath), currentFocusFile))
}

// LogDecision appends a decision entry with a pending outcome.
func (s *Store) LogDecision(projectPath, decisionID, description string) error {
	block := fmt.Sprintf("## Decision %s — %s\n%s\nOutcome: %s\n\n",
		decisionID, time.Now().Format(time.RFC3339),
		strings.TrimSpace(description), pendingOutcome)
	return appendFile(filepath.Join(goalsDir(projectPath), decisionsFile), block)
}

// UpdateDecisionOutcome records a decision's outcome, at most once. If the
// decision's outcome was already recorded the file is left unchanged; an
// unknown decision id is an error.
func (s *Store) UpdateDecisionOutcome(projectPath, decisionID, outcome string) error {
	path := filepath.Join(goalsDir(projectPath), decisionsFile)
	content := readFile(path)
	if content == "" {
		return fmt.Errorf("decision %s not found: no decisions log", decisionID)
	}

	header := fmt.Sprintf("## Decision %s ", decisionID)
	lines := strings.Split(content, "\n")
	inEntry := false
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, header):
			inEntry = true
		case inEntry && strings.HasPrefix(line, "## "):
			// Next entry started without an outcome line; malformed but
			// treat as not updatable.
			inEntry = false
		case inEntry && strings.HasPrefix(line, "Outcome: "):
			if strings.TrimSpace(strings.TrimPrefix(line, "Outcome: ")) != pendingOutcome {
				return nil
			}
			lines[i] = "Outcome: " + strings.TrimSpace(outcome)
			return writeAtomic(path, []byte(strings.Join(lines, "\n")))
		}
	}
	return fmt.Errorf("decision %s not found", decisionID)
}
