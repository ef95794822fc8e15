package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/crewly-ai/crewly/internal/constants"
)

// Config holds the tunables an operator may override in
// ~/.crewly/config.toml. Zero values mean "use the built-in default".
type Config struct {
	// Queue
	MaxQueueSize      int `toml:"max_queue_size"`
	MaxHistorySize    int `toml:"max_history_size"`
	MaxRequeueRetries int `toml:"max_requeue_retries"`

	// Timing (durations accept Go syntax, e.g. "90s", "2m").
	AgentReadyTimeout      duration `toml:"agent_ready_timeout"`
	AgentReadyPollInterval duration `toml:"agent_ready_poll_interval"`
	PromptDetectionTimeout duration `toml:"prompt_detection_timeout"`
	MessageTimeout         duration `toml:"message_timeout"`
	InterMessageDelay      duration `toml:"inter_message_delay"`
}

// duration is a TOML-decodable time.Duration.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxQueueSize:           constants.MaxQueueSize,
		MaxHistorySize:         constants.MaxHistorySize,
		MaxRequeueRetries:      constants.MaxRequeueRetries,
		AgentReadyTimeout:      duration{constants.AgentReadyTimeout},
		AgentReadyPollInterval: duration{constants.AgentReadyPollInterval},
		PromptDetectionTimeout: duration{constants.PromptDetectionTimeout},
		MessageTimeout:         duration{constants.DefaultMessageTimeout},
		InterMessageDelay:      duration{constants.InterMessageDelay},
	}
}

// Load reads config.toml from the crewly home, applying file values over
// defaults. A missing file is not an error.
func Load() (*Config, error) {
	return loadFrom(filepath.Join(CrewlyHome(), "config.toml"))
}

func loadFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	overrides := &Config{}
	if err := toml.Unmarshal(data, overrides); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.merge(overrides)
	return cfg, nil
}

func (c *Config) merge(o *Config) {
	if o.MaxQueueSize > 0 {
		c.MaxQueueSize = o.MaxQueueSize
	}
	if o.MaxHistorySize > 0 {
		c.MaxHistorySize = o.MaxHistorySize
	}
	if o.MaxRequeueRetries > 0 {
		c.MaxRequeueRetries = o.MaxRequeueRetries
	}
	if o.AgentReadyTimeout.Duration > 0 {
		c.AgentReadyTimeout = o.AgentReadyTimeout
	}
	if o.AgentReadyPollInterval.Duration > 0 {
		c.AgentReadyPollInterval = o.AgentReadyPollInterval
	}
	if o.PromptDetectionTimeout.Duration > 0 {
		c.PromptDetectionTimeout = o.PromptDetectionTimeout
	}
	if o.MessageTimeout.Duration > 0 {
		c.MessageTimeout = o.MessageTimeout
	}
	if o.InterMessageDelay.Duration > 0 {
		c.InterMessageDelay = o.InterMessageDelay
	}
}
