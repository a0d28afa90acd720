package component

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"caltab/internal/dates"
)

// Classification is the access classification of a component.
type Classification int

const (
	ClassPublic Classification = iota
	ClassPrivate
	ClassConfidential
)

func (c Classification) String() string {
	switch c {
	case ClassPrivate:
		return "Private"
	case ClassConfidential:
		return "Confidential"
	default:
		return "Public"
	}
}

// Status is the component status property.
type Status int

const (
	StatusNone Status = iota
	StatusNeedsAction
	StatusInProcess
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusNeedsAction:
		return "Not Started"
	case StatusInProcess:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return ""
	}
}

func (s Status) wire() string {
	switch s {
	case StatusNeedsAction:
		return "NEEDS-ACTION"
	case StatusInProcess:
		return "IN-PROCESS"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return ""
	}
}

// Priority is the enumerated task priority.
type Priority int

const (
	PriorityUndefined Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityNormal:
		return "Normal"
	case PriorityLow:
		return "Low"
	default:
		return "Undefined"
	}
}

// Rank orders priorities for sorting; High sorts first, Undefined last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Transparency is the event busy/free marker.
type Transparency int

const (
	TranspNone Transparency = iota
	TranspFree
	TranspBusy
)

func (t Transparency) String() string {
	switch t {
	case TranspFree:
		return "Free"
	case TranspBusy:
		return "Busy"
	default:
		return ""
	}
}

func textProp(comp *ical.Component, name string) string {
	if p := comp.Props.Get(name); p != nil {
		return p.Value
	}
	return ""
}

// UID returns the component's unique identifier.
func UID(comp *ical.Component) string { return textProp(comp, ical.PropUID) }

// RecurrenceID returns the raw RECURRENCE-ID value, empty for a base
// component.
func RecurrenceID(comp *ical.Component) string { return textProp(comp, "RECURRENCE-ID") }

// Summary returns the component summary.
func Summary(comp *ical.Component) string { return textProp(comp, ical.PropSummary) }

// SetSummary replaces the component summary.
func SetSummary(comp *ical.Component, s string) { comp.Props.SetText(ical.PropSummary, s) }

// Description returns the component description.
func Description(comp *ical.Component) string { return textProp(comp, ical.PropDescription) }

// SetDescription replaces the component description.
func SetDescription(comp *ical.Component, s string) { comp.Props.SetText(ical.PropDescription, s) }

// Location returns the free-text location.
func Location(comp *ical.Component) string { return textProp(comp, ical.PropLocation) }

// SetLocation replaces the free-text location.
func SetLocation(comp *ical.Component, s string) { comp.Props.SetText(ical.PropLocation, s) }

// URL returns the component URL.
func URL(comp *ical.Component) string { return textProp(comp, "URL") }

// SetURL replaces the component URL.
func SetURL(comp *ical.Component, s string) { comp.Props.SetText("URL", s) }

// Categories joins every CATEGORIES property into one comma-separated
// string, preserving property and entry order.
func Categories(comp *ical.Component) string {
	var parts []string
	for _, p := range comp.Props.Values("CATEGORIES") {
		for _, c := range strings.Split(p.Value, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				parts = append(parts, c)
			}
		}
	}
	return strings.Join(parts, ",")
}

// SetCategories replaces all category properties with one comma-separated
// list. An empty string removes the property.
func SetCategories(comp *ical.Component, s string) {
	comp.Props.Del("CATEGORIES")
	s = strings.TrimSpace(s)
	if s != "" {
		// Keep the comma-separated list verbatim; SetText would escape the
		// separators.
		p := ical.NewProp("CATEGORIES")
		p.Value = s
		comp.Props.Set(p)
	}
}

// ClassificationOf returns the access classification, defaulting to Public.
func ClassificationOf(comp *ical.Component) Classification {
	switch strings.ToUpper(textProp(comp, "CLASS")) {
	case "PRIVATE":
		return ClassPrivate
	case "CONFIDENTIAL":
		return ClassConfidential
	default:
		return ClassPublic
	}
}

// SetClassification writes the access classification.
func SetClassification(comp *ical.Component, c Classification) {
	switch c {
	case ClassPrivate:
		comp.Props.SetText("CLASS", "PRIVATE")
	case ClassConfidential:
		comp.Props.SetText("CLASS", "CONFIDENTIAL")
	default:
		comp.Props.SetText("CLASS", "PUBLIC")
	}
}

// StatusOf returns the component status.
func StatusOf(comp *ical.Component) Status {
	switch strings.ToUpper(textProp(comp, "STATUS")) {
	case "NEEDS-ACTION":
		return StatusNeedsAction
	case "IN-PROCESS":
		return StatusInProcess
	case "COMPLETED":
		return StatusCompleted
	case "CANCELLED":
		return StatusCancelled
	default:
		return StatusNone
	}
}

func setStatusProp(comp *ical.Component, s Status) {
	if s == StatusNone {
		comp.Props.Del("STATUS")
		return
	}
	comp.Props.SetText("STATUS", s.wire())
}

// SetStatusOnly writes the bare STATUS property. Memos carry a status but
// no percent or completion stamp, so their edits bypass the task
// completion policy in SetStatus. StatusNone removes the property.
func SetStatusOnly(comp *ical.Component, s Status) { setStatusProp(comp, s) }

// Percent returns PERCENT-COMPLETE, or -1 when the property is absent or
// malformed.
func Percent(comp *ical.Component) int {
	p := comp.Props.Get("PERCENT-COMPLETE")
	if p == nil {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.Value))
	if err != nil || n < 0 || n > 100 {
		return -1
	}
	return n
}

func setPercentProp(comp *ical.Component, pct int) {
	if pct < 0 {
		comp.Props.Del("PERCENT-COMPLETE")
		return
	}
	// Integer property; SetText would tag it VALUE=TEXT.
	p := ical.NewProp("PERCENT-COMPLETE")
	p.Value = strconv.Itoa(pct)
	comp.Props.Set(p)
}

// PriorityOf maps the numeric PRIORITY property (0-9) onto the enumerated
// priority: 1-4 high, 5 normal, 6-9 low, 0/absent undefined.
func PriorityOf(comp *ical.Component) Priority {
	p := comp.Props.Get("PRIORITY")
	if p == nil {
		return PriorityUndefined
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.Value))
	if err != nil {
		return PriorityUndefined
	}
	switch {
	case n >= 1 && n <= 4:
		return PriorityHigh
	case n == 5:
		return PriorityNormal
	case n >= 6 && n <= 9:
		return PriorityLow
	default:
		return PriorityUndefined
	}
}

// SetPriority writes the enumerated priority back as its canonical numeric
// value. Undefined removes the property.
func SetPriority(comp *ical.Component, p Priority) {
	var n int
	switch p {
	case PriorityHigh:
		n = 3
	case PriorityNormal:
		n = 5
	case PriorityLow:
		n = 7
	default:
		comp.Props.Del("PRIORITY")
		return
	}
	// Integer property, like PERCENT-COMPLETE above.
	prop := ical.NewProp("PRIORITY")
	prop.Value = strconv.Itoa(n)
	comp.Props.Set(prop)
}

// TransparencyOf returns the event busy/free marker.
func TransparencyOf(comp *ical.Component) Transparency {
	switch strings.ToUpper(textProp(comp, "TRANSP")) {
	case "TRANSPARENT":
		return TranspFree
	case "OPAQUE":
		return TranspBusy
	default:
		return TranspNone
	}
}

// SetTransparency writes the busy/free marker; TranspNone removes it.
func SetTransparency(comp *ical.Component, t Transparency) {
	switch t {
	case TranspFree:
		comp.Props.SetText("TRANSP", "TRANSPARENT")
	case TranspBusy:
		comp.Props.SetText("TRANSP", "OPAQUE")
	default:
		comp.Props.Del("TRANSP")
	}
}

// Geo returns the stored latitude/longitude pair.
func Geo(comp *ical.Component) (lat, lon float64, ok bool) {
	p := comp.Props.Get("GEO")
	if p == nil {
		return 0, 0, false
	}
	lat, lon, err := ParseGeoText(p.Value)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// SetGeo writes the latitude/longitude pair in wire form. The semicolon
// separator is structural, so the value is written verbatim.
func SetGeo(comp *ical.Component, lat, lon float64) {
	p := ical.NewProp("GEO")
	p.Value = fmt.Sprintf("%g;%g", lat, lon)
	comp.Props.Set(p)
}

// ParseGeoText parses free-text "lat,lon" (wire form "lat;lon" is also
// accepted) coordinates.
func ParseGeoText(s string) (lat, lon float64, err error) {
	s = strings.TrimSpace(s)
	sep := ","
	if strings.Contains(s, ";") {
		sep = ";"
	}
	a, b, found := strings.Cut(s, sep)
	if !found {
		return 0, 0, fmt.Errorf("component: malformed geo value %q", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("component: malformed latitude in %q", s)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("component: malformed longitude in %q", s)
	}
	return lat, lon, nil
}

// HasAlarms reports whether the component carries any VALARM child.
func HasAlarms(comp *ical.Component) bool {
	for _, child := range comp.Children {
		if child.Name == "VALARM" {
			return true
		}
	}
	return false
}

// EstimatedDuration returns the DURATION property as a time.Duration.
func EstimatedDuration(comp *ical.Component) (time.Duration, bool) {
	p := comp.Props.Get("DURATION")
	if p == nil {
		return 0, false
	}
	d, err := parseICalDuration(p.Value)
	if err != nil {
		return 0, false
	}
	return d, true
}

// parseICalDuration decodes the RFC 5545 duration form, e.g. "P1DT2H30M".
func parseICalDuration(s string) (time.Duration, error) {
	orig := s
	s = strings.TrimSpace(strings.ToUpper(s))
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "+")
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("component: malformed duration %q", orig)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := 0
	haveNum := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			haveNum = true
		case r == 'T':
			inTime = true
		case r == 'W' && !inTime:
			total += time.Duration(num) * 7 * 24 * time.Hour
			num, haveNum = 0, false
		case r == 'D' && !inTime:
			total += time.Duration(num) * 24 * time.Hour
			num, haveNum = 0, false
		case r == 'H' && inTime:
			total += time.Duration(num) * time.Hour
			num, haveNum = 0, false
		case r == 'M' && inTime:
			total += time.Duration(num) * time.Minute
			num, haveNum = 0, false
		case r == 'S' && inTime:
			total += time.Duration(num) * time.Second
			num, haveNum = 0, false
		default:
			return 0, fmt.Errorf("component: malformed duration %q", orig)
		}
	}
	if haveNum {
		return 0, fmt.Errorf("component: malformed duration %q", orig)
	}
	if neg {
		total = -total
	}
	return total, nil
}

// FormatDuration renders a duration in the compact human form used by the
// estimated-duration column, e.g. "1d 2h 30m".
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0m"
	}
	neg := d < 0
	if neg {
		d = -d
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	out := strings.Join(parts, " ")
	if neg {
		out = "-" + out
	}
	return out
}

// IconGlyph classifies the component for the leading icon column.
type IconGlyph int

const (
	IconNormal IconGlyph = iota
	IconRecurring
	IconAssigned         // assigned to the current user by someone else
	IconAssignedToOthers // organized by the current user for others
)

func (g IconGlyph) String() string {
	switch g {
	case IconRecurring:
		return "recurring"
	case IconAssigned:
		return "assigned"
	case IconAssignedToOthers:
		return "assigned-to-others"
	default:
		return "normal"
	}
}

// Icon derives the icon class from recurrence presence and the
// organizer/attendee identities relative to the current user.
func Icon(comp *ical.Component, currentUser string) IconGlyph {
	if comp.Props.Get("RRULE") != nil || comp.Props.Get("RECURRENCE-ID") != nil {
		return IconRecurring
	}
	attendees := comp.Props.Values(ical.PropAttendee)
	if len(attendees) == 0 {
		return IconNormal
	}
	organizer := mailAddress(textProp(comp, ical.PropOrganizer))
	if organizer != "" && strings.EqualFold(organizer, currentUser) {
		return IconAssignedToOthers
	}
	return IconAssigned
}

func mailAddress(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "mailto:")
}

// DateValue reads a date/date-time property, converting it from its stored
// zone into the display zone. Date-only values keep their calendar day.
func DateValue(comp *ical.Component, name string, display *time.Location) (dates.Value, bool) {
	p := comp.Props.Get(name)
	if p == nil {
		return dates.Value{}, false
	}
	if display == nil {
		display = time.UTC
	}
	t, err := p.DateTime(display)
	if err != nil {
		return dates.Value{}, false
	}
	if isDateOnly(p) {
		return dates.Value{Time: t, DateOnly: true}, true
	}
	return dates.New(t).In(display), true
}

func isDateOnly(p *ical.Prop) bool {
	if strings.EqualFold(p.Params.Get("VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// SetDateValue writes a date/date-time property, converting the edited
// value into the zone already associated with the property: an explicit
// TZID is preserved, a UTC-form value stays UTC, and a fresh property is
// written in the value's own zone. A zero value removes the property.
func SetDateValue(comp *ical.Component, name string, v dates.Value) {
	if v.IsZero() {
		comp.Props.Del(name)
		return
	}

	old := comp.Props.Get(name)

	p := ical.NewProp(name)
	switch {
	case v.DateOnly:
		p.SetDate(v.StartOfDay())
	case old != nil && old.Params.Get("TZID") != "":
		loc, err := time.LoadLocation(old.Params.Get("TZID"))
		if err != nil {
			loc = v.Time.Location()
		}
		p.SetDateTime(v.Time.In(loc))
	case old != nil && strings.HasSuffix(old.Value, "Z"):
		p.SetDateTime(v.Time.UTC())
	default:
		p.SetDateTime(v.Time)
	}
	comp.Props.Set(p)
}

// Created returns the creation stamp converted from UTC into the display
// zone. The property is never written back by this layer.
func Created(comp *ical.Component, display *time.Location) (dates.Value, bool) {
	return DateValue(comp, ical.PropCreated, display)
}

// LastModified returns the last-modified stamp converted from UTC into the
// display zone. The property is never written back by this layer.
func LastModified(comp *ical.Component, display *time.Location) (dates.Value, bool) {
	return DateValue(comp, ical.PropLastModified, display)
}
