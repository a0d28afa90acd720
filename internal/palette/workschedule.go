package palette

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"caltab/internal/config"
)

// DayTime is a time of day within a working-hours window.
type DayTime struct {
	Hour   int
	Minute int
}

// Valid reports whether d is a real 24-hour time of day.
func (d DayTime) Valid() bool {
	return d.Hour >= 0 && d.Hour <= 23 && d.Minute >= 0 && d.Minute <= 59
}

func (d DayTime) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// ParseDayTime decodes "HH:MM". The ok result is false for anything that is
// not a valid 24-hour time of day.
func ParseDayTime(s string) (DayTime, bool) {
	h, m, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return DayTime{}, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return DayTime{}, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return DayTime{}, false
	}
	d := DayTime{Hour: hour, Minute: minute}
	return d, d.Valid()
}

// Workday is one weekday's schedule entry.
type Workday struct {
	Working bool
	// Start/End override the global hours when both are valid.
	Start, End DayTime
	HasHours   bool
}

// WorkSchedule resolves the effective working-hours window per weekday.
type WorkSchedule struct {
	WeekStart        time.Weekday
	CompressWeekends bool

	days     [7]Workday
	defStart DayTime
	defEnd   DayTime
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NewWorkSchedule builds a schedule from the settings file.
func NewWorkSchedule(cfg *config.Config) *WorkSchedule {
	ws := &WorkSchedule{
		WeekStart:        time.Monday,
		CompressWeekends: cfg.CompressWeekends,
	}
	if day, ok := weekdayNames[strings.ToLower(cfg.WeekStart)]; ok {
		ws.WeekStart = day
	}

	if d, ok := ParseDayTime(cfg.WorkdayStart); ok {
		ws.defStart = d
	} else {
		ws.defStart = DayTime{Hour: 9}
	}
	if d, ok := ParseDayTime(cfg.WorkdayEnd); ok {
		ws.defEnd = d
	} else {
		ws.defEnd = DayTime{Hour: 17}
	}

	for name, wd := range cfg.Workdays {
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			continue
		}
		entry := Workday{Working: wd.Working}
		start, sok := ParseDayTime(wd.Start)
		end, eok := ParseDayTime(wd.End)
		// An override only applies when both ends decode cleanly.
		if sok && eok {
			entry.Start, entry.End, entry.HasHours = start, end, true
		}
		ws.days[day] = entry
	}

	return ws
}

// Working reports whether the given weekday is a work day.
func (ws *WorkSchedule) Working(day time.Weekday) bool {
	return ws.days[day].Working
}

// Hours returns the effective working window for the weekday: the per-day
// override when present and valid, the global fallback otherwise.
func (ws *WorkSchedule) Hours(day time.Weekday) (start, end DayTime) {
	if d := ws.days[day]; d.HasHours {
		return d.Start, d.End
	}
	return ws.defStart, ws.defEnd
}
