package scheduler

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewly-ai/crewly/internal/queue"
)

type enqueueCall struct {
	content        string
	conversationID string
	source         queue.Source
	origin         string
	at             time.Time
}

// fakeEnqueuer records everything the scheduler feeds into the queue.
type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []enqueueCall
}

func (f *fakeEnqueuer) Enqueue(content, conversationID string, source queue.Source, meta queue.SourceMetadata) (string, error) {
	origin := ""
	if sys, ok := meta.(queue.SystemEventMetadata); ok {
		origin = sys.Origin
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enqueueCall{content, conversationID, source, origin, time.Now()})
	return "msg-1", nil
}

func (f *fakeEnqueuer) Calls() []enqueueCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enqueueCall(nil), f.calls...)
}

func newTestScheduler(t *testing.T) (*Scheduler, *Store, *fakeEnqueuer) {
	t.Helper()
	store := NewStoreAt(filepath.Join(t.TempDir(), "scheduled-messages.json"), nil)
	enq := &fakeEnqueuer{}
	s := New(store, enq, nil)
	s.settle = 100 * time.Millisecond
	t.Cleanup(s.Cleanup)
	return s, store, enq
}

func soon(d time.Duration) *time.Time {
	at := time.Now().Add(d)
	return &at
}

func TestOneShotFiresAndDeactivates(t *testing.T) {
	s, store, enq := newTestScheduler(t)

	require.NoError(t, s.ScheduleMessage(Message{
		ID:      "m1",
		Name:    "standup ping",
		Body:    "post the standup summary",
		Delay:   Delay{Amount: 1, Unit: UnitMinutes},
		NextRun: soon(50 * time.Millisecond),
	}))
	assert.Equal(t, 1, s.ActiveTimerCount())

	require.Eventually(t, func() bool { return len(enq.Calls()) == 1 },
		2*time.Second, 10*time.Millisecond)

	call := enq.Calls()[0]
	assert.Equal(t, "post the standup summary", call.content)
	assert.Equal(t, "sched-m1", call.conversationID)
	assert.Equal(t, queue.SourceSystemEvent, call.source)
	assert.Equal(t, "scheduler:standup ping", call.origin)

	require.Eventually(t, func() bool { return s.ActiveTimerCount() == 0 },
		time.Second, 10*time.Millisecond)

	msg, ok, err := store.Get("m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, msg.IsActive)
	assert.Nil(t, msg.NextRun)
	assert.NotNil(t, msg.LastRun)
}

func TestRecurringRearms(t *testing.T) {
	s, store, enq := newTestScheduler(t)

	require.NoError(t, s.ScheduleMessage(Message{
		ID:          "m1",
		Name:        "hourly sweep",
		Body:        "sweep",
		Delay:       Delay{Amount: 1, Unit: UnitHours},
		IsRecurring: true,
		NextRun:     soon(50 * time.Millisecond),
	}))

	require.Eventually(t, func() bool { return len(enq.Calls()) == 1 },
		2*time.Second, 10*time.Millisecond)

	// Recurring entries stay active, keep a timer, and advance nextRun.
	assert.Equal(t, 1, s.ActiveTimerCount())
	msg, ok, err := store.Get("m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, msg.IsActive)
	require.NotNil(t, msg.NextRun)
	assert.Greater(t, time.Until(*msg.NextRun), 50*time.Minute)
}

func TestCancelMessageDisarms(t *testing.T) {
	s, store, enq := newTestScheduler(t)

	require.NoError(t, s.ScheduleMessage(Message{
		ID:      "m1",
		Name:    "cancel me",
		Body:    "never",
		Delay:   Delay{Amount: 1, Unit: UnitMinutes},
		NextRun: soon(100 * time.Millisecond),
	}))
	require.NoError(t, s.CancelMessage("m1"))
	assert.Zero(t, s.ActiveTimerCount())

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, enq.Calls())

	msg, ok, err := store.Get("m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, msg.IsActive)
}

func TestFireRereadsStoreSoExternalEditsWin(t *testing.T) {
	s, store, enq := newTestScheduler(t)

	require.NoError(t, s.ScheduleMessage(Message{
		ID:      "m1",
		Name:    "edited away",
		Body:    "stale",
		Delay:   Delay{Amount: 1, Unit: UnitMinutes},
		NextRun: soon(100 * time.Millisecond),
	}))

	// Deactivate behind the scheduler's back; the armed timer must notice.
	msg, ok, err := store.Get("m1")
	require.NoError(t, err)
	require.True(t, ok)
	msg.IsActive = false
	require.NoError(t, store.Upsert(msg))

	require.Eventually(t, func() bool { return s.ActiveTimerCount() == 0 },
		2*time.Second, 10*time.Millisecond)
	assert.Empty(t, enq.Calls())
}

func TestRescheduleAllMessages(t *testing.T) {
	s, store, enq := newTestScheduler(t)

	require.NoError(t, store.Upsert(Message{
		ID: "future", Name: "later", Body: "later",
		Delay: Delay{Amount: 1, Unit: UnitHours}, IsActive: true,
		NextRun: soon(time.Hour),
	}))
	require.NoError(t, store.Upsert(Message{
		ID: "missed", Name: "overdue", Body: "overdue work",
		Delay: Delay{Amount: 1, Unit: UnitHours}, IsActive: true,
		NextRun: soon(-time.Hour),
	}))
	require.NoError(t, store.Upsert(Message{
		ID: "off", Name: "disabled", Body: "no",
		Delay: Delay{Amount: 1, Unit: UnitHours},
	}))

	require.NoError(t, s.RescheduleAllMessages())
	assert.Equal(t, 2, s.ActiveTimerCount())

	// Missed entries fire shortly after rearming; future ones wait.
	require.Eventually(t, func() bool { return len(enq.Calls()) == 1 },
		3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "overdue work", enq.Calls()[0].content)
}

func TestAutoAssignFiringsAreSerialized(t *testing.T) {
	s, _, enq := newTestScheduler(t)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, s.ScheduleMessage(Message{
			ID:      id,
			Name:    "auto-assign " + id,
			Body:    "assign " + id,
			Delay:   Delay{Amount: 1, Unit: UnitMinutes},
			NextRun: soon(30 * time.Millisecond),
		}))
	}

	require.Eventually(t, func() bool { return len(enq.Calls()) == 2 },
		3*time.Second, 10*time.Millisecond)

	calls := enq.Calls()
	gap := calls[1].at.Sub(calls[0].at)
	assert.GreaterOrEqual(t, gap, 80*time.Millisecond,
		"auto-assign executions must be separated by the settle delay")
}

func TestScheduleMessageRejectsBadDelay(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	err := s.ScheduleMessage(Message{ID: "m1", Delay: Delay{Amount: 0, Unit: UnitMinutes}})
	assert.Error(t, err)
}

func TestScheduleTaskReminders(t *testing.T) {
	s, store, _ := newTestScheduler(t)
	project := t.TempDir()

	_, err := WriteTaskFile(project, "m1_setup", TaskOpen, "010_bootstrap.md",
		TaskHeader{TargetRole: "developer", StepID: "m1-010", DelayMinutes: 5}, "Bootstrap the repo.")
	require.NoError(t, err)
	_, err = WriteTaskFile(project, "m1_setup", TaskOpen, "020_no_delay.md",
		TaskHeader{TargetRole: "developer", StepID: "m1-020"}, "No reminder wanted.")
	require.NoError(t, err)
	_, err = WriteTaskFile(project, "m1_setup", TaskInProgress, "030_started.md",
		TaskHeader{TargetRole: "developer", StepID: "m1-030", DelayMinutes: 5}, "Already picked up.")
	require.NoError(t, err)

	armed, err := s.ScheduleTaskReminders(project)
	require.NoError(t, err)
	assert.Equal(t, 1, armed)
	assert.Equal(t, 1, s.ActiveTimerCount())

	msg, ok, err := store.Get("task-m1-010")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, msg.Body, "m1-010")
	assert.Contains(t, msg.Body, "Bootstrap the repo.")
	assert.True(t, msg.IsActive)
}

func TestDelayConversions(t *testing.T) {
	assert.Equal(t, 30*time.Second, Delay{Amount: 30, Unit: UnitSeconds}.Duration())
	assert.Equal(t, 5*time.Minute, Delay{Amount: 5, Unit: UnitMinutes}.Duration())
	assert.Equal(t, 2*time.Hour, Delay{Amount: 2, Unit: UnitHours}.Duration())
	assert.Equal(t, 48*time.Hour, Delay{Amount: 2, Unit: UnitDays}.Duration())
	// Unknown units fall back to minutes.
	assert.Equal(t, 3*time.Minute, Delay{Amount: 3, Unit: "fortnights"}.Duration())
}

func TestIsAutoAssign(t *testing.T) {
	assert.True(t, Message{Name: "auto-assign sweep"}.IsAutoAssign())
	assert.False(t, Message{Name: "standup"}.IsAutoAssign())
}
