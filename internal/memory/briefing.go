package memory

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crewly-ai/crewly/internal/config"
	"github.com/crewly-ai/crewly/internal/constants"
)

// StartupBriefing assembles the context injected as an agent's first prompt:
// latest session summary, agent context, project context, today's activity,
// active goals, and the tails of the project's learning logs, in that order.
// Each section is truncated independently; missing sections are omitted.
// An empty return means there is nothing worth injecting.
func (s *Store) StartupBriefing(agentID, role, projectPath string) (string, error) {
	learningDir := filepath.Join(config.ProjectDir(projectPath), "learning")

	sections := []struct {
		title   string
		content string
	}{
		{"Latest Session Summary", s.LatestSummary(agentID)},
		{"Agent Context", s.AgentContext(agentID)},
		{"Project Context", s.ProjectContext(projectPath)},
		{"Today's Activity", s.TodaysLog(projectPath)},
		{"Active Goals", s.ActiveGoals(projectPath)},
		{"What Failed Recently", readTail(filepath.Join(learningDir, whatFailedFile), constants.LearningTailChars)},
		{"What Worked Recently", readTail(filepath.Join(learningDir, whatWorkedFile), constants.LearningTailChars)},
	}

	var b strings.Builder
	for _, section := range sections {
		content := strings.TrimSpace(section.content)
		if content == "" {
			continue
		}
		if len(content) > constants.MaxSectionChars {
			content = content[:constants.MaxSectionChars]
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", section.title, content)
	}
	if b.Len() == 0 {
		return "", nil
	}
	return fmt.Sprintf("You are %s (role: %s). Context from memory:\n\n%s", agentID, role, strings.TrimRight(b.String(), "\n")), nil
}
