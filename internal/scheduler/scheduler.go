package scheduler

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/crewly-ai/crewly/internal/constants"
	"github.com/crewly-ai/crewly/internal/queue"
)

// Enqueuer is the slice of the message queue the scheduler uses.
type Enqueuer interface {
	Enqueue(content, conversationID string, source queue.Source, meta queue.SourceMetadata) (string, error)
}

// Scheduler owns one timer per active scheduled message. Timer handlers
// enqueue and return; auto-assignment firings are additionally funneled
// through a single worker with a settle delay so they never overlap.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer

	store   *Store
	enqueue Enqueuer
	logger  *slog.Logger
	settle  time.Duration

	serialCh chan func()
	done     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// New creates a scheduler. Call Cleanup when done.
func New(store *Store, enqueue Enqueuer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		timers:   make(map[string]*time.Timer),
		store:    store,
		enqueue:  enqueue,
		logger:   logger.With("component", "scheduler"),
		settle:   constants.AutoAssignSettleDelay,
		serialCh: make(chan func(), 16),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.serialWorker()
	return s
}

// ScheduleMessage persists the entry and arms its timer, replacing any
// prior timer for the same id. The delay counts from nextRun when that is
// still in the future, otherwise from now.
func (s *Scheduler) ScheduleMessage(msg Message) error {
	if err := msg.Delay.Validate(); err != nil {
		return fmt.Errorf("scheduling %s: %w", msg.ID, err)
	}

	delay := msg.Delay.Duration()
	if msg.NextRun != nil {
		if until := time.Until(*msg.NextRun); until > 0 {
			delay = until
		}
	} else {
		next := time.Now().Add(delay)
		msg.NextRun = &next
	}
	msg.IsActive = true

	if err := s.store.Upsert(msg); err != nil {
		return err
	}
	s.arm(msg.ID, delay)
	s.logger.Info("scheduled message armed",
		"id", msg.ID, "name", msg.Name, "delay", delay, "recurring", msg.IsRecurring)
	return nil
}

// CancelMessage disarms and deactivates one entry.
func (s *Scheduler) CancelMessage(id string) error {
	s.disarm(id)

	msg, ok, err := s.store.Get(id)
	if err != nil || !ok {
		return err
	}
	msg.IsActive = false
	msg.NextRun = nil
	return s.store.Upsert(msg)
}

// CancelAllMessages disarms every timer without touching persistence.
func (s *Scheduler) CancelAllMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// RescheduleAllMessages disarms everything, reloads active entries from the
// store, and re-arms them. Safe to call from the store's change watch.
func (s *Scheduler) RescheduleAllMessages() error {
	s.CancelAllMessages()

	active, err := s.store.Active()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, msg := range active {
		delay := msg.Delay.Duration()
		if msg.NextRun != nil {
			if until := msg.NextRun.Sub(now); until > 0 {
				delay = until
			} else {
				// Missed while the process was down; fire shortly.
				delay = time.Second
			}
		}
		s.arm(msg.ID, delay)
	}
	s.logger.Info("rescheduled active messages", "count", len(active))
	return nil
}

// ScheduleTaskReminders arms one-shot reminders for every open task file in
// the project that declares a positive delayMinutes. Reminder ids derive
// from the task path so re-scanning replaces rather than duplicates timers.
func (s *Scheduler) ScheduleTaskReminders(projectPath string) (int, error) {
	tasks, err := ListTasks(projectPath)
	if err != nil {
		return 0, err
	}

	armed := 0
	for _, task := range tasks {
		if task.State != TaskOpen || task.Header.DelayMinutes <= 0 {
			continue
		}
		msg := Message{
			ID:            "task-" + task.Header.StepID,
			Name:          "task-reminder " + filepath.Base(task.Path),
			TargetProject: projectPath,
			Body: fmt.Sprintf("Reminder for role %s, step %s:\n%s",
				task.Header.TargetRole, task.Header.StepID, task.Body),
			Delay: Delay{Amount: task.Header.DelayMinutes, Unit: UnitMinutes},
		}
		if err := s.ScheduleMessage(msg); err != nil {
			s.logger.Warn("arming task reminder failed", "task", task.Path, "error", err)
			continue
		}
		armed++
	}
	return armed, nil
}

// ActiveTimerCount returns the number of armed timers.
func (s *Scheduler) ActiveTimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Cleanup disarms all timers and stops the serial worker.
func (s *Scheduler) Cleanup() {
	s.CancelAllMessages()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

// arm replaces the timer for id.
func (s *Scheduler) arm(id string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.timers[id]; ok {
		prior.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
}

// disarm stops and forgets the timer for id.
func (s *Scheduler) disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// fire runs on the timer goroutine. It re-reads the entry so cancellations
// or external edits between arming and firing win.
func (s *Scheduler) fire(id string) {
	msg, ok, err := s.store.Get(id)
	if err != nil {
		s.logger.Warn("loading fired entry failed", "id", id, "error", err)
		return
	}
	if !ok || !msg.IsActive {
		s.disarm(id)
		return
	}

	if msg.IsAutoAssign() {
		select {
		case s.serialCh <- func() { s.execute(msg) }:
		case <-s.done:
		}
		return
	}
	s.execute(msg)
}

// execute enqueues the scheduled body and advances the entry's bookkeeping:
// recurring entries re-arm, one-shots deactivate.
func (s *Scheduler) execute(msg Message) {
	conversationID := "sched-" + msg.ID
	if _, err := s.enqueue.Enqueue(msg.Body, conversationID, queue.SourceSystemEvent,
		queue.SystemEventMetadata{Origin: "scheduler:" + msg.Name}); err != nil {
		s.logger.Warn("enqueuing scheduled message failed",
			"id", msg.ID, "name", msg.Name, "error", err)
		// Fall through: bookkeeping still advances so a full queue cannot
		// wedge a recurring entry into a hot loop.
	}

	now := time.Now()
	msg.LastRun = &now

	if msg.IsRecurring && msg.IsActive {
		next := now.Add(msg.Delay.Duration())
		msg.NextRun = &next
		if err := s.store.Upsert(msg); err != nil {
			s.logger.Warn("persisting recurring entry failed", "id", msg.ID, "error", err)
		}
		s.arm(msg.ID, msg.Delay.Duration())
		return
	}

	msg.IsActive = false
	msg.NextRun = nil
	if err := s.store.Upsert(msg); err != nil {
		s.logger.Warn("deactivating one-shot entry failed", "id", msg.ID, "error", err)
	}
	s.disarm(msg.ID)
}

// serialWorker drains the auto-assignment lane one firing at a time with a
// settle delay between consecutive executions.
func (s *Scheduler) serialWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.serialCh:
			fn()
			select {
			case <-s.done:
				return
			case <-time.After(s.settle):
			}
		}
	}
}
