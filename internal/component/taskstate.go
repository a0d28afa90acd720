package component

import (
	"time"

	"github.com/emersion/go-ical"

	"caltab/internal/dates"
)

// The task completion policy keeps STATUS, PERCENT-COMPLETE and COMPLETED
// mutually consistent after any single-field edit. Invariant after each
// entry point (except an explicit Cancelled edit):
//
//	status == Completed  <=>  percent == 100  <=>  COMPLETED is set

// timeNow is stubbed by tests that pin "now".
var timeNow = time.Now

// SetCompleted writes the completion timestamp. A concrete value forces
// percent to 100 and status to Completed; a zero value clears completion
// and resets the task to NeedsAction if it was Completed.
func SetCompleted(comp *ical.Component, v dates.Value) {
	if v.IsZero() {
		wasCompleted := StatusOf(comp) == StatusCompleted
		comp.Props.Del("COMPLETED")
		if wasCompleted {
			setPercentProp(comp, -1)
			setStatusProp(comp, StatusNeedsAction)
		}
		return
	}

	// COMPLETED is always stored in UTC on the wire.
	p := ical.NewProp("COMPLETED")
	p.SetDateTime(v.Time.UTC())
	comp.Props.Set(p)
	setPercentProp(comp, 100)
	setStatusProp(comp, StatusCompleted)
}

// CompletedAt returns the completion timestamp in the display zone.
func CompletedAt(comp *ical.Component, display *time.Location) (dates.Value, bool) {
	return DateValue(comp, "COMPLETED", display)
}

// SetPercent applies a percent-complete edit. The sentinel -1 means unset.
func SetPercent(comp *ical.Component, pct int) {
	switch {
	case pct >= 100:
		if comp.Props.Get("COMPLETED") == nil {
			p := ical.NewProp("COMPLETED")
			p.SetDateTime(timeNow().UTC())
			comp.Props.Set(p)
		}
		setPercentProp(comp, 100)
		setStatusProp(comp, StatusCompleted)

	case pct > 0:
		hadCompleted := comp.Props.Get("COMPLETED") != nil
		comp.Props.Del("COMPLETED")
		if hadCompleted {
			setStatusProp(comp, StatusInProcess)
		}
		setPercentProp(comp, pct)

	default: // 0 or unset
		comp.Props.Del("COMPLETED")
		setPercentProp(comp, -1)
		if StatusOf(comp) != StatusCancelled {
			setStatusProp(comp, StatusNeedsAction)
		}
	}
}

// SetStatus applies a direct status edit, adjusting percent and the
// completion timestamp to match.
func SetStatus(comp *ical.Component, st Status) {
	switch st {
	case StatusCompleted:
		SetCompleted(comp, dates.New(timeNow().UTC()))

	case StatusInProcess:
		comp.Props.Del("COMPLETED")
		if pct := Percent(comp); pct <= 0 || pct == 100 {
			setPercentProp(comp, 50)
		}
		setStatusProp(comp, StatusInProcess)

	case StatusCancelled:
		comp.Props.Del("COMPLETED")
		setPercentProp(comp, -1)
		setStatusProp(comp, StatusCancelled)

	default: // NeedsAction (and None collapses to it)
		comp.Props.Del("COMPLETED")
		setPercentProp(comp, -1)
		setStatusProp(comp, StatusNeedsAction)
	}
}

// IsComplete reports whether the task is complete under the consistency
// policy: any of the three redundant properties marks it so.
func IsComplete(comp *ical.Component) bool {
	return StatusOf(comp) == StatusCompleted ||
		Percent(comp) == 100 ||
		comp.Props.Get("COMPLETED") != nil
}

// Strikeout reports whether the row renders struck through: cancelled or
// complete.
func Strikeout(comp *ical.Component) bool {
	return StatusOf(comp) == StatusCancelled || IsComplete(comp)
}
