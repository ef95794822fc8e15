package memory

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/crewly-ai/crewly/internal/config"
)

func dailyLogPath(projectPath string, day time.Time) string {
	return filepath.Join(config.ProjectDir(projectPath), "logs", "daily",
		day.Format("2006-01-02")+".md")
}

// LogDaily appends an activity entry to today's project log. One file per
// day; entries are headed `## [role / agentId] HH:MM` and appear in
// insertion order.
func (s *Store) LogDaily(projectPath, role, agentID, entry string) error {
	now := time.Now()
	block := fmt.Sprintf("## [%s / %s] %s\n- %s\n\n",
		role, agentID, now.Format("15:04"), strings.TrimSpace(entry))
	return appendFile(dailyLogPath(projectPath, now), block)
}

// TodaysLog returns today's daily log, or "" if nothing was logged yet.
func (s *Store) TodaysLog(projectPath string) string {
	return readFile(dailyLogPath(projectPath, time.Now()))
}
