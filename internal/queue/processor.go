package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crewly-ai/crewly/internal/agent"
	"github.com/crewly-ai/crewly/internal/constants"
	"github.com/crewly-ai/crewly/internal/eventbus"
	"github.com/crewly-ai/crewly/internal/runtime"
)

// TimeoutResponseMarker is recorded as the response of a message whose
// correlation window elapsed. The message still counts as processed.
const TimeoutResponseMarker = "[no orchestrator response within timeout]"

// OrchestratorStatusFunc reads the orchestrator's externally managed
// lifecycle status. Dispatch proceeds only while it reports "active".
type OrchestratorStatusFunc func() string

// OrchestratorActive is the status value that opens the dispatch gate.
const OrchestratorActive = "active"

// ConversationBinder is the terminal gateway's boundary contract: before a
// prompt is injected, the processor announces which conversation is live so
// streamed output can be correlated server-side.
type ConversationBinder interface {
	SetActiveConversation(conversationID string)
}

// AgentSender is the slice of the agent manager the processor uses.
type AgentSender interface {
	WaitForAgentReady(ctx context.Context, name string, timeout time.Duration, rt runtime.Type) bool
	SendMessageToAgent(name, content string, rt runtime.Type) agent.SendResult
}

// ProcessorConfig carries the processor's tunables. Zero values fall back
// to the constants package.
type ProcessorConfig struct {
	OrchestratorSession string
	Runtime             runtime.Type
	ReadyTimeout        time.Duration
	PollInterval        time.Duration
	MessageTimeout      time.Duration
	PostIdleTimeout     time.Duration
	InterMessageDelay   time.Duration
	MaxRequeueRetries   int
}

func (c *ProcessorConfig) applyDefaults() {
	if c.OrchestratorSession == "" {
		c.OrchestratorSession = constants.OrchestratorSessionName
	}
	if c.Runtime == "" {
		c.Runtime = runtime.TypeClaudeCode
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = constants.AgentReadyTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = constants.AgentReadyPollInterval
	}
	if c.MessageTimeout == 0 {
		c.MessageTimeout = constants.DefaultMessageTimeout
	}
	if c.PostIdleTimeout == 0 {
		c.PostIdleTimeout = constants.PromptDetectionTimeout
	}
	if c.InterMessageDelay == 0 {
		c.InterMessageDelay = constants.InterMessageDelay
	}
	if c.MaxRequeueRetries == 0 {
		c.MaxRequeueRetries = constants.MaxRequeueRetries
	}
}

// Processor is the single-consumer dispatch loop. At most one message is in
// flight to the orchestrator at any time; everything else in the process
// coordinates with it only through the queue's operations and the event
// buses.
type Processor struct {
	queue  *Queue
	agents AgentSender
	bus    *eventbus.Bus
	router *Router
	status OrchestratorStatusFunc
	binder ConversationBinder
	cfg    ProcessorConfig
	logger *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	wake       chan struct{}
	wg         sync.WaitGroup
	started    atomic.Bool
	processing atomic.Bool
}

// NewProcessor wires the dispatch loop. status gates dispatch; binder may
// be nil.
func NewProcessor(q *Queue, agents AgentSender, bus *eventbus.Bus, router *Router, status OrchestratorStatusFunc, binder ConversationBinder, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		queue:  q,
		agents: agents,
		bus:    bus,
		router: router,
		status: status,
		binder: binder,
		cfg:    cfg,
		logger: logger.With("component", "processor"),
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
}

// Start launches the dispatch loop. Idempotent.
func (p *Processor) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	events, unsubscribe := p.queue.Subscribe()
	p.wg.Add(2)

	go func() {
		defer p.wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-p.ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if event.Type == EventEnqueued {
					p.signalWake()
				}
			}
		}
	}()

	go func() {
		defer p.wg.Done()
		p.run()
	}()
}

// Stop halts the loop at the next suspension point. The in-flight message
// is not forcibly aborted, but its post-response advance is skipped.
func (p *Processor) Stop() {
	p.cancel()
	p.wg.Wait()
}

// IsProcessingMessage reports whether a dispatch is currently in flight.
func (p *Processor) IsProcessingMessage() bool {
	return p.processing.Load()
}

func (p *Processor) run() {
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		msg, ok := p.queue.Peek()
		if !ok {
			select {
			case <-p.ctx.Done():
				return
			case <-p.wake:
			}
			continue
		}

		p.processing.Store(true)
		p.processOne(msg)
		p.processing.Store(false)

		if !p.sleep(p.cfg.InterMessageDelay) {
			return
		}
	}
}

// processOne runs the per-message state machine: gate, readiness, dispatch,
// response correlation, post-completion idle wait.
func (p *Processor) processOne(msg Message) {
	// Orchestrator init gate. Not active is a deferral, never a retry:
	// the message stays pending and the retry counter is untouched.
	if p.status != nil && p.status() != OrchestratorActive {
		p.logger.Debug("orchestrator not active, deferring dispatch",
			"message", msg.ID, "conversation", msg.ConversationID)
		p.sleep(p.cfg.PollInterval)
		return
	}

	if err := p.queue.StartProcessing(msg.ID); err != nil {
		// Cancelled or claimed since the peek; move on.
		p.logger.Debug("message no longer dispatchable", "message", msg.ID, "error", err)
		return
	}

	// Pre-dispatch readiness.
	if !p.agents.WaitForAgentReady(p.ctx, p.cfg.OrchestratorSession, p.cfg.ReadyTimeout, p.cfg.Runtime) {
		if msg.RetryCount >= p.cfg.MaxRequeueRetries {
			errText := fmt.Sprintf("Message delivery failed: agent not available after %d retries", p.cfg.MaxRequeueRetries)
			_ = p.queue.Fail(msg.ID, errText)
			p.router.RouteError(msg, errText)
			p.logger.Warn("message permanently failed",
				"message", msg.ID, "retries", msg.RetryCount)
		} else {
			_ = p.queue.Requeue(msg.ID)
			p.logger.Debug("orchestrator not ready, requeued",
				"message", msg.ID, "retryCount", msg.RetryCount+1)
			p.sleep(p.cfg.PollInterval)
		}
		return
	}

	// Conversation binding: tell the terminal gateway which conversation
	// is live so streamed output is correlated server-side.
	if p.binder != nil {
		p.binder.SetActiveConversation(msg.ConversationID)
	}

	outcome := p.agents.SendMessageToAgent(p.cfg.OrchestratorSession, frameContent(msg), p.cfg.Runtime)
	if !outcome.Success {
		// Delivery failure: fail, route, advance. No idle wait here —
		// a broken session must not stall the queue.
		_ = p.queue.Fail(msg.ID, outcome.Error)
		p.router.RouteError(msg, fmt.Sprintf("Message delivery failed: %s", outcome.Error))
		p.logger.Warn("injection failed", "message", msg.ID, "error", outcome.Error)
		return
	}

	response, responded := p.awaitResponse(msg.ConversationID, p.cfg.MessageTimeout)
	if !responded {
		// Shutdown is not a timeout: leave the message processing rather
		// than record a response marker it never earned.
		if p.ctx.Err() != nil {
			p.logger.Info("stopping with message in flight", "message", msg.ID)
			return
		}
		response = TimeoutResponseMarker
		p.logger.Warn("response window elapsed", "message", msg.ID,
			"conversation", msg.ConversationID)
	}
	_ = p.queue.Complete(msg.ID, response)
	p.router.Route(msg, response)

	// Post-completion idle wait, bounded and non-fatal: a timeout here
	// means advance, never requeue.
	if !p.agents.WaitForAgentReady(p.ctx, p.cfg.OrchestratorSession, p.cfg.PostIdleTimeout, p.cfg.Runtime) {
		p.logger.Debug("post-completion idle wait timed out, advancing", "message", msg.ID)
	}
}

// awaitResponse subscribes to the chat bus and waits for the first event
// matching the conversation and originating from the orchestrator.
func (p *Processor) awaitResponse(conversationID string, timeout time.Duration) (string, bool) {
	events, unsubscribe := p.bus.Subscribe()
	defer unsubscribe()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return "", false
		case <-timer.C:
			return "", false
		case event, ok := <-events:
			if !ok {
				return "", false
			}
			if event.ConversationID == conversationID && event.From.Type == eventbus.ParticipantOrchestrator {
				return event.Content, true
			}
		}
	}
}

// frameContent prefixes the message so the conversation id survives the
// round trip through terminal output.
func frameContent(msg Message) string {
	if msg.Source == SourceSystemEvent {
		return fmt.Sprintf("[SYSTEM:%s] %s", msg.ConversationID, msg.Content)
	}
	return fmt.Sprintf("[CHAT:%s] %s", msg.ConversationID, msg.Content)
}

// sleep waits for d, returning false if the processor is stopping.
func (p *Processor) sleep(d time.Duration) bool {
	select {
	case <-p.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (p *Processor) signalWake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
