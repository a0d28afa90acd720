package palette

import (
	"fmt"
	"testing"
	"time"

	"caltab/internal/config"
)

func TestColorStability(t *testing.T) {
	r := NewRegistry()
	first := r.Color("work", "")
	for i := 0; i < 5; i++ {
		if got := r.Color("work", ""); got != first {
			t.Fatalf("lookup %d changed color: %q != %q", i, got, first)
		}
	}
}

func TestConfiguredColorWins(t *testing.T) {
	r := NewRegistry()
	if got := r.Color("home", "#123456"); got != "#123456" {
		t.Errorf("configured color ignored: %q", got)
	}
	// Without the explicit color the source falls back to assignment.
	assigned := r.Color("home", "")
	if assigned == "#123456" {
		t.Errorf("palette assignment should not equal the explicit color")
	}
	if got := r.Color("home", ""); got != assigned {
		t.Errorf("assignment not stable: %q != %q", got, assigned)
	}
}

func TestRoundRobinWrap(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < PaletteSize; i++ {
		c := r.Color(fmt.Sprintf("src-%d", i), "")
		if seen[c] {
			t.Fatalf("color %q reused before palette exhausted", c)
		}
		seen[c] = true
	}
	// The 11th source wraps to the first slot.
	wrap := r.Color("src-extra", "")
	if wrap != r.Color("src-0", "") {
		t.Errorf("11th source got %q, want first slot color", wrap)
	}
}

func TestWorkScheduleOverride(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workdays["friday"] = config.WorkdayConfig{Working: true, Start: "08:30", End: "12:00"}
	cfg.Workdays["saturday"] = config.WorkdayConfig{Working: true, Start: "25:00", End: "12:00"} // invalid hour

	ws := NewWorkSchedule(cfg)

	start, end := ws.Hours(time.Friday)
	if start != (DayTime{Hour: 8, Minute: 30}) || end != (DayTime{Hour: 12}) {
		t.Errorf("friday hours = %v..%v", start, end)
	}

	// Invalid override falls back to the global window.
	start, end = ws.Hours(time.Saturday)
	if start != (DayTime{Hour: 9}) || end != (DayTime{Hour: 17}) {
		t.Errorf("saturday fallback = %v..%v", start, end)
	}

	if !ws.Working(time.Friday) || ws.Working(time.Sunday) {
		t.Errorf("working flags wrong")
	}
}

func TestWeekStartAcceptsAnyWeekday(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WeekStart = "wednesday"
	if ws := NewWorkSchedule(cfg); ws.WeekStart != time.Wednesday {
		t.Errorf("week start = %v, want Wednesday", ws.WeekStart)
	}

	cfg.WeekStart = "someday"
	if ws := NewWorkSchedule(cfg); ws.WeekStart != time.Monday {
		t.Errorf("unknown week start = %v, want Monday fallback", ws.WeekStart)
	}
}

func TestParseDayTime(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"00:00", true},
		{"23:59", true},
		{"24:00", false},
		{"12:60", false},
		{"12", false},
		{"ab:cd", false},
	}
	for _, tc := range cases {
		if _, ok := ParseDayTime(tc.in); ok != tc.ok {
			t.Errorf("ParseDayTime(%q) ok = %v, want %v", tc.in, ok, tc.ok)
		}
	}
}
