// Package scheduler arms timers for delayed and recurring messages and
// feeds them into the dispatch queue when they fire. Scheduled entries are
// persisted as JSON so they survive restarts; auto-assignment messages are
// serialized through an internal worker so concurrent firings cannot stomp
// on each other.
package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// DelayUnit is the unit of a scheduled message's delay.
type DelayUnit string

const (
	UnitSeconds DelayUnit = "seconds"
	UnitMinutes DelayUnit = "minutes"
	UnitHours   DelayUnit = "hours"
	UnitDays    DelayUnit = "days"
)

// Delay is a scheduled message's interval.
type Delay struct {
	Amount int       `json:"amount"`
	Unit   DelayUnit `json:"unit"`
}

// Duration converts the delay to a time.Duration. Unknown units are treated
// as minutes.
func (d Delay) Duration() time.Duration {
	amount := time.Duration(d.Amount)
	switch d.Unit {
	case UnitSeconds:
		return amount * time.Second
	case UnitHours:
		return amount * time.Hour
	case UnitDays:
		return amount * 24 * time.Hour
	default:
		return amount * time.Minute
	}
}

// Validate rejects non-positive delays.
func (d Delay) Validate() error {
	if d.Amount <= 0 {
		return fmt.Errorf("delay amount must be positive, got %d", d.Amount)
	}
	return nil
}

// autoAssignPrefix marks scheduled messages that drive task auto-assignment
// and therefore must execute sequentially.
const autoAssignPrefix = "auto-assign"

// Message is a persisted scheduled entry.
type Message struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	TargetTeam    string     `json:"targetTeam,omitempty"`
	TargetProject string     `json:"targetProject,omitempty"`
	Body          string     `json:"body"`
	Delay         Delay      `json:"delay"`
	IsRecurring   bool       `json:"isRecurring"`
	IsActive      bool       `json:"isActive"`
	LastRun       *time.Time `json:"lastRun,omitempty"`
	NextRun       *time.Time `json:"nextRun,omitempty"`
}

// IsAutoAssign reports whether the entry belongs to the sequential
// auto-assignment lane.
func (m Message) IsAutoAssign() bool {
	return strings.HasPrefix(m.Name, autoAssignPrefix)
}
