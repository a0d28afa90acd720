// Package recur resolves concrete instance start/end pairs for a component
// within a bounded time window, expanding RRULE-based recurrence and
// honoring EXDATE exceptions. Detached RECURRENCE-ID overrides arrive as
// separate components and resolve like single events.
package recur

import (
	"errors"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

// maxInstancesPerComponent caps expansion so a pathological rule cannot
// produce an unbounded instance list.
const maxInstancesPerComponent = 1000

// Instance is one concrete occurrence with resolved bounds.
type Instance struct {
	Start time.Time
	End   time.Time
}

// IsRecurring reports whether the component carries a recurrence rule or is
// a detached instance of one.
func IsRecurring(comp *ical.Component) bool {
	return comp.Props.Get("RRULE") != nil || comp.Props.Get("RECURRENCE-ID") != nil
}

// baseTimes extracts the component's own start/end. Tasks use DUE as the
// end bound; an all-day start spans a full day. The ok result is false when
// the component has no start at all.
func baseTimes(comp *ical.Component, loc *time.Location) (start, end time.Time, allDay bool, ok bool) {
	if loc == nil {
		loc = time.UTC
	}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp != nil {
		t, err := startProp.DateTime(loc)
		if err == nil {
			start = t
			allDay = isDateValue(startProp)
		}
	}

	endProp := comp.Props.Get(ical.PropDateTimeEnd)
	if endProp == nil {
		endProp = comp.Props.Get("DUE")
	}
	if endProp != nil {
		if t, err := endProp.DateTime(loc); err == nil {
			end = t
			if start.IsZero() {
				start = t
				allDay = isDateValue(endProp)
			}
		}
	}

	if start.IsZero() {
		return time.Time{}, time.Time{}, false, false
	}
	if end.IsZero() {
		if allDay {
			end = start.Add(24 * time.Hour)
		} else {
			end = start
		}
	}
	return start, end, allDay, true
}

func isDateValue(p *ical.Prop) bool {
	if strings.EqualFold(p.Params.Get("VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// Instances expands the component into occurrences intersecting
// [rangeStart, rangeEnd]. Times are returned in the component's own zone;
// callers convert for display.
func Instances(comp *ical.Component, rangeStart, rangeEnd time.Time, loc *time.Location) ([]Instance, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, errors.New("recur: range end before range start")
	}

	start, end, allDay, ok := baseTimes(comp, loc)
	if !ok {
		// Undated components (tasks without a due date) belong to every
		// window.
		return []Instance{{}}, nil
	}

	rawRule := ""
	if p := comp.Props.Get("RRULE"); p != nil && comp.Props.Get("RECURRENCE-ID") == nil {
		rawRule = p.Value
	}

	if rawRule == "" {
		if !overlaps(start, end, rangeStart, rangeEnd) {
			return nil, nil
		}
		return []Instance{{Start: start, End: end}}, nil
	}

	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exDates(comp, start.Location()) {
		set.ExDate(ex)
	}

	occStarts := set.Between(rangeStart.In(start.Location()), rangeEnd.In(start.Location()), true)
	if len(occStarts) > maxInstancesPerComponent {
		occStarts = occStarts[:maxInstancesPerComponent]
	}

	dur := end.Sub(start)
	out := make([]Instance, 0, len(occStarts))
	for _, occStart := range occStarts {
		if allDay {
			y, m, d := occStart.Date()
			day := time.Date(y, m, d, 0, 0, 0, 0, occStart.Location())
			out = append(out, Instance{Start: day, End: day.Add(24 * time.Hour)})
			continue
		}
		out = append(out, Instance{Start: occStart, End: occStart.Add(dur)})
	}
	return out, nil
}

// Bounds resolves the record's instance bounds for the window: the first
// occurrence intersecting it, or the component's own bounds when none does.
func Bounds(comp *ical.Component, rangeStart, rangeEnd time.Time, loc *time.Location) (Instance, bool) {
	insts, err := Instances(comp, rangeStart, rangeEnd, loc)
	if err == nil && len(insts) > 0 {
		return insts[0], true
	}
	start, end, _, ok := baseTimes(comp, loc)
	if !ok {
		return Instance{}, false
	}
	return Instance{Start: start, End: end}, true
}

// Intersects reports whether any instance of the component falls within
// [rangeStart, rangeEnd]. Undated components intersect every window.
func Intersects(comp *ical.Component, rangeStart, rangeEnd time.Time) bool {
	insts, err := Instances(comp, rangeStart, rangeEnd, time.UTC)
	if err != nil {
		// An unparsable rule still has a dated base component.
		start, end, _, ok := baseTimes(comp, time.UTC)
		return ok && overlaps(start, end, rangeStart, rangeEnd)
	}
	return len(insts) > 0
}

// exDates collects EXDATE values, aligning each with loc for set exclusion.
func exDates(comp *ical.Component, loc *time.Location) []time.Time {
	var out []time.Time
	for _, p := range comp.Props.Values("EXDATE") {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// parseICSTime parses the basic ICS date/date-time forms used by EXDATE.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(loc), nil
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
