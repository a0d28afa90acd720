package table

import (
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-ical"

	"caltab/internal/component"
	"caltab/internal/dates"
)

// Column addresses one derived field of a record. The common range
// applies to every kind; the remaining columns are kind-specific and only
// valid for rows of that kind (see AppliesTo).
type Column int

const (
	// Common to every kind.
	ColCategories Column = iota
	ColClassification
	ColColor
	ColSummary
	ColDescription
	ColStart
	ColCreated
	ColLastModified
	ColHasAlarms
	ColIcon
	ColUID
	ColSourceName

	// Events and tasks.
	ColLocation

	// Events.
	ColEnd
	ColTransparency

	// Tasks and memos.
	ColStatus

	// Tasks.
	ColDue
	ColCompleted
	ColPercent
	ColPriority
	ColGeo
	ColURL
	ColEstimatedDuration
	ColComplete
	ColOverdue
	ColStrikeout

	columnCount
)

var columnNames = map[Column]string{
	ColCategories:        "categories",
	ColClassification:    "classification",
	ColColor:             "color",
	ColSummary:           "summary",
	ColDescription:       "description",
	ColStart:             "start",
	ColCreated:           "created",
	ColLastModified:      "last-modified",
	ColHasAlarms:         "has-alarms",
	ColIcon:              "icon",
	ColUID:               "uid",
	ColSourceName:        "source",
	ColLocation:          "location",
	ColEnd:               "end",
	ColTransparency:      "transparency",
	ColStatus:            "status",
	ColDue:               "due",
	ColCompleted:         "completed",
	ColPercent:           "percent",
	ColPriority:          "priority",
	ColGeo:               "geo",
	ColURL:               "url",
	ColEstimatedDuration: "estimated-duration",
	ColComplete:          "complete",
	ColOverdue:           "overdue",
	ColStrikeout:         "strikeout",
}

func (c Column) String() string {
	if s, ok := columnNames[c]; ok {
		return s
	}
	return fmt.Sprintf("column(%d)", int(c))
}

// AppliesTo reports whether the column is defined for the given kind.
func (c Column) AppliesTo(kind component.Kind) bool {
	if c >= ColCategories && c <= ColSourceName {
		return true
	}
	switch c {
	case ColLocation:
		return kind == component.KindEvent || kind == component.KindTask
	case ColEnd, ColTransparency:
		return kind == component.KindEvent
	case ColStatus:
		return kind == component.KindTask || kind == component.KindMemo
	case ColDue, ColCompleted, ColPercent, ColPriority, ColGeo, ColURL,
		ColEstimatedDuration, ColComplete, ColOverdue, ColStrikeout:
		return kind == component.KindTask
	default:
		return false
	}
}

// Columns lists every column defined for the kind, in declaration order.
func Columns(kind component.Kind) []Column {
	var out []Column
	for c := Column(0); c < columnCount; c++ {
		if c.AppliesTo(kind) {
			out = append(out, c)
		}
	}
	return out
}

// readOnlyColumn marks the derived columns no edit can target.
func readOnlyColumn(c Column) bool {
	switch c {
	case ColColor, ColCreated, ColLastModified, ColHasAlarms, ColIcon,
		ColUID, ColSourceName, ColEstimatedDuration, ColComplete,
		ColOverdue, ColStrikeout:
		return true
	default:
		return false
	}
}

func (m *Model) checkColumn(rec *component.Record, col Column) {
	if col < 0 || col >= columnCount {
		panic(fmt.Sprintf("table: column %d out of range", int(col)))
	}
	if !col.AppliesTo(rec.Kind()) {
		panic(fmt.Sprintf("table: column %s does not apply to %s rows", col, rec.Kind()))
	}
}

// ValueAt resolves the derived value for a row/column pair. Every
// date/time column is converted into the display timezone; the start
// column is recurrence-resolved to the instance inside the subscribed
// window. Out-of-range rows and columns are programming errors.
func (m *Model) ValueAt(row int, col Column) any {
	rec := m.Record(row)
	m.checkColumn(rec, col)

	comp := rec.Payload()
	switch col {
	case ColCategories:
		return rec.CategoriesString()
	case ColClassification:
		return component.ClassificationOf(comp)
	case ColColor:
		return rec.Color(m.reg)
	case ColSummary:
		return component.Summary(comp)
	case ColDescription:
		return component.Description(comp)
	case ColStart:
		return m.startValue(rec)
	case ColCreated:
		v, _ := component.Created(comp, m.display)
		return v
	case ColLastModified:
		v, _ := component.LastModified(comp, m.display)
		return v
	case ColHasAlarms:
		return component.HasAlarms(comp)
	case ColIcon:
		return component.Icon(comp, m.cfg.CurrentUser)
	case ColUID:
		return component.UID(comp)
	case ColSourceName:
		return rec.Conn().Source().Name
	case ColLocation:
		return component.Location(comp)
	case ColEnd:
		return m.endValue(rec)
	case ColTransparency:
		return component.TransparencyOf(comp)
	case ColStatus:
		return component.StatusOf(comp)
	case ColDue:
		v, _ := component.Due(comp, m.display)
		return v
	case ColCompleted:
		v, _ := component.CompletedAt(comp, m.display)
		return v
	case ColPercent:
		return component.Percent(comp)
	case ColPriority:
		return component.PriorityOf(comp)
	case ColGeo:
		if lat, lon, ok := component.Geo(comp); ok {
			return fmt.Sprintf("%g,%g", lat, lon)
		}
		return ""
	case ColURL:
		return component.URL(comp)
	case ColEstimatedDuration:
		d, _ := component.EstimatedDuration(comp)
		return d
	case ColComplete:
		return component.IsComplete(comp)
	case ColOverdue:
		return component.DueStateOf(comp, time.Now(), m.display) == component.DueOverdue
	case ColStrikeout:
		return component.Strikeout(comp)
	default:
		panic(fmt.Sprintf("table: unhandled column %s", col))
	}
}

// startValue reads the start column: the stored DTSTART for its date-only
// flag, with the instant replaced by the recurrence-resolved instance
// start inside the window.
func (m *Model) startValue(rec *component.Record) dates.Value {
	v, ok := component.DateValue(rec.Payload(), ical.PropDateTimeStart, m.display)
	if !ok {
		return dates.Value{}
	}
	inst := rec.InstanceBounds(m.start, m.end, m.display)
	if !inst.Start.IsZero() {
		if v.DateOnly {
			return dates.NewDate(inst.Start)
		}
		v.Time = inst.Start
	}
	return v
}

func (m *Model) endValue(rec *component.Record) dates.Value {
	v, ok := component.DateValue(rec.Payload(), ical.PropDateTimeEnd, m.display)
	if !ok {
		return dates.Value{}
	}
	inst := rec.InstanceBounds(m.start, m.end, m.display)
	if !inst.End.IsZero() && !v.DateOnly {
		v.Time = inst.End
	}
	return v
}

// IsEditable reports whether a cell accepts edits: derived columns and
// rows on read-only sources do not.
func (m *Model) IsEditable(row int, col Column) bool {
	rec := m.Record(row)
	m.checkColumn(rec, col)
	if rec.Conn().ReadOnly() {
		return false
	}
	return !readOnlyColumn(col)
}

// InitialValue returns the value an unpopulated cell of a fresh row
// carries, used by click-to-add machinery.
func (m *Model) InitialValue(col Column) any {
	switch col {
	case ColClassification:
		if m.cfg.ClassifyPrivate {
			return component.ClassPrivate
		}
		return component.ClassPublic
	case ColStart, ColEnd, ColDue, ColCompleted, ColCreated, ColLastModified:
		return dates.Value{}
	case ColPercent:
		return -1
	case ColPriority:
		return component.PriorityUndefined
	case ColStatus:
		return component.StatusNone
	case ColTransparency:
		return component.TranspNone
	case ColIcon:
		return component.IconNormal
	case ColEstimatedDuration:
		return time.Duration(0)
	case ColHasAlarms, ColComplete, ColOverdue, ColStrikeout:
		return false
	default:
		return ""
	}
}

// IsEmpty reports whether v is the column's "nothing here" value.
func (m *Model) IsEmpty(col Column, v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case dates.Value:
		return v.IsZero()
	case bool:
		return !v
	case int:
		return v < 0
	case time.Duration:
		return v == 0
	case component.Classification:
		return v == component.ClassPublic
	case component.Status:
		return v == component.StatusNone
	case component.Priority:
		return v == component.PriorityUndefined
	case component.Transparency:
		return v == component.TranspNone
	case component.IconGlyph:
		return v == component.IconNormal
	default:
		return false
	}
}

// Duplicate copies a column value. Every column value is a plain Go
// value, so the copy is the value itself; the operation exists so generic
// table machinery (cut/copy/paste) can treat columns uniformly.
func (m *Model) Duplicate(col Column, v any) any { return v }

// Free releases a duplicated value. Nothing to do for plain values; kept
// as the counterpart of Duplicate.
func (m *Model) Free(col Column, v any) {}

// Value coercion for the write path. Passing a value of the wrong type
// for a column is a programming error.

func asString(col Column, v any) string {
	s, ok := v.(string)
	if !ok {
		panic(fmt.Sprintf("table: column %s expects string, got %T", col, v))
	}
	return s
}

func asDate(col Column, v any) dates.Value {
	d, ok := v.(dates.Value)
	if !ok {
		panic(fmt.Sprintf("table: column %s expects dates.Value, got %T", col, v))
	}
	return d
}

func asInt(col Column, v any) int {
	n, ok := v.(int)
	if !ok {
		panic(fmt.Sprintf("table: column %s expects int, got %T", col, v))
	}
	return n
}

// DisplayString renders a column value for presentation, honoring the
// configured clock style.
func (m *Model) DisplayString(col Column, v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case dates.Value:
		return v.Format(m.cfg.TwentyFourHour)
	case bool:
		if v {
			return "✓"
		}
		return ""
	case int:
		if v < 0 {
			return ""
		}
		return strconv.Itoa(v) + "%"
	case time.Duration:
		if v == 0 {
			return ""
		}
		return component.FormatDuration(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
