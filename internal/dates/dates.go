// Package dates provides the timezone-aware date/time value used for every
// displayed or edited calendar field. A Value carries its zone inside the
// embedded time.Time plus a flag marking date-only (all-day) semantics.
package dates

import (
	"errors"
	"strings"
	"time"
)

// Value is a single date or date-time in a concrete timezone.
type Value struct {
	Time     time.Time
	DateOnly bool
}

// ErrParse is returned when a display string cannot be interpreted as a
// date or date-time.
var ErrParse = errors.New("dates: unrecognized date/time string")

// New returns a date-time Value at t, in t's own location.
func New(t time.Time) Value {
	return Value{Time: t}
}

// NewDate returns a date-only Value for the calendar day of t.
func NewDate(t time.Time) Value {
	y, m, d := t.Date()
	return Value{
		Time:     time.Date(y, m, d, 0, 0, 0, 0, t.Location()),
		DateOnly: true,
	}
}

// Today returns a date-only Value for the current day in loc.
func Today(loc *time.Location) Value {
	if loc == nil {
		loc = time.UTC
	}
	return NewDate(time.Now().In(loc))
}

// IsZero reports whether v holds no value.
func (v Value) IsZero() bool {
	return v.Time.IsZero()
}

// In converts v to loc, preserving the instant. Date-only values are not
// converted: the calendar day is the value, independent of zone.
func (v Value) In(loc *time.Location) Value {
	if v.DateOnly || v.IsZero() || loc == nil {
		return v
	}
	return Value{Time: v.Time.In(loc)}
}

// Compare orders two values by instant. Date-only values compare as the
// start of their day in their own zone. Zero values sort first.
func (v Value) Compare(o Value) int {
	switch {
	case v.IsZero() && o.IsZero():
		return 0
	case v.IsZero():
		return -1
	case o.IsZero():
		return 1
	}
	a, b := v.Time, o.Time
	if a.Before(b) {
		return -1
	}
	if a.After(b) {
		return 1
	}
	return 0
}

// Equal reports whether two values name the same instant and precision.
func (v Value) Equal(o Value) bool {
	return v.DateOnly == o.DateOnly && v.Compare(o) == 0
}

const (
	layoutDate = "2006-01-02"
	layout24   = "2006-01-02 15:04"
	layout12   = "2006-01-02 3:04 PM"
)

// Format renders v for display. twentyFourHour selects the clock style for
// date-time values; date-only values always render as a plain date.
func (v Value) Format(twentyFourHour bool) string {
	if v.IsZero() {
		return ""
	}
	if v.DateOnly {
		return v.Time.Format(layoutDate)
	}
	if twentyFourHour {
		return v.Time.Format(layout24)
	}
	return v.Time.Format(layout12)
}

// String renders v in the 24-hour display form.
func (v Value) String() string {
	return v.Format(true)
}

// Parse interprets a display string produced by Format (either clock style,
// or a bare date) in loc. The empty string parses to the zero Value.
func Parse(s string, loc *time.Location) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range []string{layout24, layout12} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Value{Time: t}, nil
		}
	}
	if t, err := time.ParseInLocation(layoutDate, s, loc); err == nil {
		return Value{Time: t, DateOnly: true}, nil
	}
	return Value{}, ErrParse
}

// StartOfDay returns midnight of v's calendar day in v's zone.
func (v Value) StartOfDay() time.Time {
	y, m, d := v.Time.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, v.Time.Location())
}

// EndOfDay returns the last representable moment of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
