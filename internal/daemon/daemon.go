// Package daemon wires the orchestrator core into one long-running process:
// session backend, state store, runtime adapters, agent manager, memory,
// message queue, processor, and scheduler.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/crewly-ai/crewly/internal/agent"
	"github.com/crewly-ai/crewly/internal/config"
	"github.com/crewly-ai/crewly/internal/constants"
	"github.com/crewly-ai/crewly/internal/eventbus"
	"github.com/crewly-ai/crewly/internal/memory"
	"github.com/crewly-ai/crewly/internal/queue"
	"github.com/crewly-ai/crewly/internal/runtime"
	"github.com/crewly-ai/crewly/internal/scheduler"
	"github.com/crewly-ai/crewly/internal/session"
	"github.com/crewly-ai/crewly/internal/tmux"
)

// Status values reported by the daemon's lifecycle.
const (
	StatusStarting = "starting"
	StatusActive   = "active"
	StatusStopping = "stopping"
)

// Options configures a daemon.
type Options struct {
	// Backend hosts the sessions. Defaults to tmux.
	Backend session.Backend
	// OrchestratorRuntime is the CLI runtime launched in the orchestrator
	// session. Defaults to claude-code.
	OrchestratorRuntime runtime.Type
	// WorkDir is the orchestrator's working directory. Defaults to the
	// process working directory.
	WorkDir string
	Logger  *slog.Logger
}

// Daemon is the composition root. Everything communicates through the
// queue's operations and the event buses; the daemon only wires and
// supervises.
type Daemon struct {
	cfg      *config.Config
	opts     Options
	logger   *slog.Logger
	backend  session.Backend
	store    *session.StateStore
	registry *runtime.Registry
	agents   *agent.Manager
	mem      *memory.Store
	bus      *eventbus.Bus
	queue    *queue.Queue
	router   *queue.Router

	processor  *queue.Processor
	sched      *scheduler.Scheduler
	schedStore *scheduler.Store

	status atomic.Value // string
}

// New builds the daemon from configuration. Nothing runs until Run.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Backend == nil {
		opts.Backend = tmux.NewTmux()
	}
	if opts.OrchestratorRuntime == "" {
		opts.OrchestratorRuntime = runtime.TypeClaudeCode
	}
	if opts.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving work dir: %w", err)
		}
		opts.WorkDir = wd
	}

	d := &Daemon{
		cfg:      cfg,
		opts:     opts,
		logger:   logger.With("component", "daemon"),
		backend:  opts.Backend,
		store:    session.NewStateStore(config.SessionStatePath(), logger),
		registry: runtime.NewRegistry(),
		mem:      memory.NewStore(logger),
		bus:      eventbus.New(),
		queue:    queue.New(cfg.MaxQueueSize, cfg.MaxHistorySize),
	}
	d.status.Store(StatusStarting)

	d.agents = agent.NewManager(d.backend, d.store, d.registry, logger).
		WithMemoryHooks(memory.NewHooks(d.mem))
	d.router = queue.NewRouter(busNotifier{d.bus}, logger)

	d.processor = queue.NewProcessor(d.queue, d.agents, d.bus, d.router,
		d.Status, nil, queue.ProcessorConfig{
			OrchestratorSession: constants.OrchestratorSessionName,
			Runtime:             opts.OrchestratorRuntime,
			ReadyTimeout:        cfg.AgentReadyTimeout.Duration,
			PollInterval:        cfg.AgentReadyPollInterval.Duration,
			MessageTimeout:      cfg.MessageTimeout.Duration,
			PostIdleTimeout:     cfg.PromptDetectionTimeout.Duration,
			InterMessageDelay:   cfg.InterMessageDelay.Duration,
			MaxRequeueRetries:   cfg.MaxRequeueRetries,
		}, logger)

	d.schedStore = scheduler.NewStore(logger)
	d.sched = scheduler.New(d.schedStore, d.queue, logger)
	return d, nil
}

// Status returns the daemon's lifecycle status. The processor's dispatch
// gate reads this.
func (d *Daemon) Status() string {
	return d.status.Load().(string)
}

// Queue exposes the message queue for enqueue surfaces (gateway, CLI).
func (d *Daemon) Queue() *queue.Queue { return d.queue }

// Bus exposes the chat event bus.
func (d *Daemon) Bus() *eventbus.Bus { return d.bus }

// Agents exposes the agent manager.
func (d *Daemon) Agents() *agent.Manager { return d.agents }

// Scheduler exposes the scheduled-message engine.
func (d *Daemon) Scheduler() *scheduler.Scheduler { return d.sched }

// Run starts everything and blocks until ctx is cancelled, then shuts the
// core down in dependency order.
func (d *Daemon) Run(ctx context.Context) error {
	restored, err := d.store.RestoreState(d.backend)
	if err != nil {
		d.logger.Warn("restoring persisted sessions failed", "error", err)
	} else if restored > 0 {
		d.logger.Info("restored persisted sessions", "count", restored)
	}

	if err := d.ensureOrchestrator(ctx); err != nil {
		return fmt.Errorf("starting orchestrator: %w", err)
	}
	d.status.Store(StatusActive)
	d.logger.Info("orchestrator active", "session", constants.OrchestratorSessionName)

	d.processor.Start()

	if err := d.schedStore.Watch(func() {
		if err := d.sched.RescheduleAllMessages(); err != nil {
			d.logger.Warn("rescheduling after store change failed", "error", err)
		}
	}); err != nil {
		d.logger.Warn("watching scheduler store failed", "error", err)
	}
	if err := d.sched.RescheduleAllMessages(); err != nil {
		d.logger.Warn("arming persisted schedules failed", "error", err)
	}

	statsDone := make(chan struct{})
	go d.publishStats(statsDone)

	<-ctx.Done()

	d.status.Store(StatusStopping)
	d.processor.Stop()
	d.sched.Cleanup()
	_ = d.schedStore.Close()
	close(statsDone)
	d.bus.Close()
	d.store.Flush()
	if err := d.store.SaveState(); err != nil {
		d.logger.Warn("saving session state failed", "error", err)
	}
	d.logger.Info("daemon stopped")
	return nil
}

// ensureOrchestrator creates and initializes the orchestrator session if it
// is not already running (freshly created or just restored).
func (d *Daemon) ensureOrchestrator(ctx context.Context) error {
	name := constants.OrchestratorSessionName

	exists, err := d.backend.HasSession(name)
	if err != nil {
		return fmt.Errorf("checking orchestrator session: %w", err)
	}
	if !exists {
		opts := session.CreateOptions{WorkDir: d.opts.WorkDir}
		if err := d.agents.CreateAgentSession(name, opts, d.opts.OrchestratorRuntime,
			"orchestrator", "", ""); err != nil {
			return err
		}
	}
	return d.agents.InitializeAgent(ctx, name, "orchestrator", d.opts.OrchestratorRuntime)
}

// publishStats mirrors queue statistics to ~/.crewly/queue-stats.json so
// out-of-process tooling (the CLI's queue status) can read them. Best
// effort; a failed write only logs.
func (d *Daemon) publishStats(done <-chan struct{}) {
	events, unsubscribe := d.queue.Subscribe()
	defer unsubscribe()

	write := func() {
		if err := writeStatsFile(d.queue.Stats()); err != nil {
			d.logger.Debug("writing queue stats failed", "error", err)
		}
	}
	write()

	for {
		select {
		case <-done:
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			write()
		case <-time.After(30 * time.Second):
			write()
		}
	}
}

// busNotifier posts system messages by publishing them on the chat bus; the
// external chat store subscribes there.
type busNotifier struct {
	bus *eventbus.Bus
}

func (n busNotifier) PostSystemMessage(conversationID, text string) error {
	n.bus.Publish(eventbus.MessageEvent{
		ConversationID: conversationID,
		From:           eventbus.Participant{Type: eventbus.ParticipantSystem, ID: "crewly"},
		Content:        text,
	})
	return nil
}
