package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/crewly-ai/crewly/internal/config"
	"github.com/crewly-ai/crewly/internal/queue"
)

// StatsSnapshot is the on-disk mirror of queue statistics.
type StatsSnapshot struct {
	Pending        int       `json:"pending"`
	Processing     bool      `json:"processing"`
	TotalProcessed int       `json:"totalProcessed"`
	TotalFailed    int       `json:"totalFailed"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// QueueStatsPath is where the daemon mirrors queue statistics.
func QueueStatsPath() string {
	return filepath.Join(config.CrewlyHome(), "queue-stats.json")
}

func writeStatsFile(stats queue.Stats) error {
	snap := StatsSnapshot{
		Pending:        stats.Pending,
		Processing:     stats.Processing,
		TotalProcessed: stats.TotalProcessed,
		TotalFailed:    stats.TotalFailed,
		UpdatedAt:      time.Now(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	path := QueueStatsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// ReadStats loads the daemon's last published queue statistics.
func ReadStats() (StatsSnapshot, error) {
	data, err := os.ReadFile(QueueStatsPath())
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("reading queue stats: %w", err)
	}
	var snap StatsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return StatsSnapshot{}, fmt.Errorf("parsing queue stats: %w", err)
	}
	return snap, nil
}
