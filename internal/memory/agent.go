package memory

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crewly-ai/crewly/internal/config"
)

// Per-agent memory files under ~/.crewly/agents/{agentId}/.
const (
	knowledgeFile   = "knowledge.md"
	preferencesFile = "preferences.md"
	performanceFile = "performance.md"
)

// AppendKnowledge records a fact the agent learned.
func (s *Store) AppendKnowledge(agentID, fact string) error {
	path := filepath.Join(config.AgentDir(agentID), knowledgeFile)
	return appendFile(path, fmt.Sprintf("- %s\n", strings.TrimSpace(fact)))
}

// WritePreferences replaces the agent's preferences document.
func (s *Store) WritePreferences(agentID, content string) error {
	path := filepath.Join(config.AgentDir(agentID), preferencesFile)
	return writeAtomic(path, []byte(content))
}

// AppendPerformanceNote records an observation about the agent's work.
func (s *Store) AppendPerformanceNote(agentID, note string) error {
	path := filepath.Join(config.AgentDir(agentID), performanceFile)
	return appendFile(path, fmt.Sprintf("- %s\n", strings.TrimSpace(note)))
}

// AgentContext assembles the agent's accumulated knowledge, preferences,
// and performance notes into one document. Missing files are skipped.
func (s *Store) AgentContext(agentID string) string {
	dir := config.AgentDir(agentID)
	var sections []string
	for _, part := range []struct{ title, file string }{
		{"Knowledge", knowledgeFile},
		{"Preferences", preferencesFile},
		{"Performance", performanceFile},
	} {
		content := strings.TrimSpace(readFile(filepath.Join(dir, part.file)))
		if content == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("### %s\n%s", part.title, content))
	}
	return strings.Join(sections, "\n\n")
}
