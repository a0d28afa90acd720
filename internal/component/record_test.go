package component

import (
	"testing"

	"github.com/emersion/go-ical"

	"caltab/internal/backend"
)

func TestIDStringRoundTrip(t *testing.T) {
	cases := []ID{
		{Source: "work", UID: "abc-123"},
		{Source: "work", UID: "abc@example.com"},
		{Source: "home", UID: "series-1", RecurrenceID: "20260810T090000Z"},
	}
	for _, want := range cases {
		got, err := ParseID(want.String())
		if err != nil {
			t.Errorf("ParseID(%q): %v", want.String(), err)
			continue
		}
		if got != want {
			t.Errorf("round trip %q: got %+v", want.String(), got)
		}
	}

	for _, bad := range []string{"", "work", "/uid", "work/"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) accepted malformed input", bad)
		}
	}
}

func TestSetPayloadDropsCaches(t *testing.T) {
	conn := backend.NewMemory(backend.SourceInfo{ID: "mem", Name: "Memory"})

	comp := ical.NewComponent("VTODO")
	comp.Props.SetText(ical.PropUID, "t1")
	comp.Props.SetText("CATEGORIES", "Errands")

	rec := NewRecord(conn, comp)
	if got := rec.CategoriesString(); got != "Errands" {
		t.Fatalf("categories = %q", got)
	}

	next := ical.NewComponent("VTODO")
	next.Props.SetText(ical.PropUID, "t1")
	next.Props.SetText("CATEGORIES", "Chores")
	rec.SetPayload(next)

	if got := rec.CategoriesString(); got != "Chores" {
		t.Errorf("categories after replace = %q, want Chores", got)
	}
	if rec.ID() != (ID{Source: "mem", UID: "t1"}) {
		t.Errorf("id = %+v", rec.ID())
	}
}
