package memory

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/crewly-ai/crewly/internal/config"
)

const latestSummaryFile = "latest-summary.md"

// IndexEntry is one agent's row in the project's agents-index.json.
type IndexEntry struct {
	AgentID    string    `json:"agentId"`
	Role       string    `json:"role"`
	LastActive time.Time `json:"lastActive"`
}

type agentsIndex struct {
	Agents []IndexEntry `json:"agents"`
}

// WriteSessionSummary persists a session's summary twice: a timestamped
// file that is never rewritten, and latest-summary.md mirroring the most
// recent write. It also bumps the agent's lastActive in the project index.
func (s *Store) WriteSessionSummary(agentID, role, projectPath, summary string) error {
	now := time.Now()
	dir := config.AgentSessionsDir(agentID)

	stamped := filepath.Join(dir, now.Format("2006-01-02-15-04")+".md")
	doc := fmt.Sprintf("# Session Summary — %s\n\n%s\n", now.Format(time.RFC3339), summary)
	if err := writeAtomic(stamped, []byte(doc)); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, latestSummaryFile), []byte(doc)); err != nil {
		return err
	}

	if projectPath != "" {
		if err := s.TouchAgentIndex(projectPath, agentID, role); err != nil {
			s.logger.Warn("updating agents index failed",
				"agent", agentID, "project", projectPath, "error", err)
		}
	}
	return nil
}

// LatestSummary returns the agent's most recent session summary, or "".
func (s *Store) LatestSummary(agentID string) string {
	return readFile(filepath.Join(config.AgentSessionsDir(agentID), latestSummaryFile))
}

// TouchAgentIndex upserts the agent's row in {project}/.crewly/
// agents-index.json, setting lastActive to now. The full document is
// rewritten atomically.
func (s *Store) TouchAgentIndex(projectPath, agentID, role string) error {
	path := filepath.Join(config.ProjectDir(projectPath), "agents-index.json")

	var index agentsIndex
	if raw := readFile(path); raw != "" {
		if err := json.Unmarshal([]byte(raw), &index); err != nil {
			s.logger.Warn("agents index unreadable, rebuilding", "path", path, "error", err)
			index = agentsIndex{}
		}
	}

	now := time.Now()
	found := false
	for i := range index.Agents {
		if index.Agents[i].AgentID == agentID {
			index.Agents[i].Role = role
			index.Agents[i].LastActive = now
			found = true
			break
		}
	}
	if !found {
		index.Agents = append(index.Agents, IndexEntry{AgentID: agentID, Role: role, LastActive: now})
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding agents index: %w", err)
	}
	return writeAtomic(path, data)
}

// AgentIndex returns the project's registered agents, or nil when the index
// is missing or unreadable.
func (s *Store) AgentIndex(projectPath string) []IndexEntry {
	path := filepath.Join(config.ProjectDir(projectPath), "agents-index.json")
	raw := readFile(path)
	if raw == "" {
		return nil
	}
	var index agentsIndex
	if err := json.Unmarshal([]byte(raw), &index); err != nil {
		return nil
	}
	return index.Agents
}
