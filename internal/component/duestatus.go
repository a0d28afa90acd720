package component

import (
	"time"

	"github.com/emersion/go-ical"

	"caltab/internal/dates"
)

// DueState classifies a task's due date relative to now and its completion
// state. It is derived, never stored.
type DueState int

const (
	DueNever DueState = iota
	DueComplete
	DueOverdue
	DueToday
	DueFuture
)

func (d DueState) String() string {
	switch d {
	case DueComplete:
		return "complete"
	case DueOverdue:
		return "overdue"
	case DueToday:
		return "due-today"
	case DueFuture:
		return "future"
	default:
		return "never"
	}
}

// Due returns the task due value converted to the display zone.
func Due(comp *ical.Component, display *time.Location) (dates.Value, bool) {
	return DateValue(comp, "DUE", display)
}

// DueStateOf evaluates the due classification at the given instant in the
// given zone. Completion always wins over the due date. A date-only due is
// due at the start of its day, matching all-day end-date semantics, so it
// turns Overdue the moment the due day begins.
func DueStateOf(comp *ical.Component, now time.Time, display *time.Location) DueState {
	if IsComplete(comp) {
		return DueComplete
	}

	due, ok := Due(comp, display)
	if !ok {
		return DueNever
	}
	if display == nil {
		display = time.UTC
	}
	now = now.In(display)

	if due.DateOnly {
		if !now.Before(due.StartOfDay()) {
			return DueOverdue
		}
		return DueFuture
	}

	if !due.Time.After(now) {
		return DueOverdue
	}
	if dates.SameDay(due.Time, now, display) {
		return DueToday
	}
	return DueFuture
}
