package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/emersion/go-ical"
)

type captureSub struct {
	added, modified int
	removed         int
	lastPayload     *ical.Component
}

func (s *captureSub) ComponentAdded(Connection, *ical.Component) { s.added++ }
func (s *captureSub) ComponentModified(conn Connection, comp *ical.Component) {
	s.modified++
	s.lastPayload = comp
}
func (s *captureSub) ComponentRemoved(Connection, string, string) { s.removed++ }
func (s *captureSub) Freeze()                                     {}
func (s *captureSub) Thaw()                                       {}

func testBroker(conns ...Connection) *Broker {
	return NewBroker(slog.New(slog.NewTextHandler(io.Discard, nil)), conns...)
}

func eventIn(uid string, start time.Time) *ical.Component {
	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropUID, uid)
	comp.Props.SetDateTime(ical.PropDateTimeStart, start)
	comp.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(time.Hour))
	return comp
}

func TestCloneComponentIsIndependent(t *testing.T) {
	orig := eventIn("c1", time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC))
	orig.Props.SetText(ical.PropSummary, "original")
	alarm := ical.NewComponent("VALARM")
	alarm.Props.SetText("ACTION", "DISPLAY")
	orig.Children = append(orig.Children, alarm)

	clone := CloneComponent(orig)
	clone.Props.SetText(ical.PropSummary, "edited")
	clone.Children[0].Props.SetText("ACTION", "EMAIL")

	if got := orig.Props.Get(ical.PropSummary).Value; got != "original" {
		t.Errorf("clone edit leaked into original: %q", got)
	}
	if got := orig.Children[0].Props.Get("ACTION").Value; got != "DISPLAY" {
		t.Errorf("child edit leaked into original: %q", got)
	}
}

func TestWritesEchoToSubscribersInWindow(t *testing.T) {
	mem := NewMemory(SourceInfo{ID: "mem", Name: "Memory"})
	b := testBroker(mem)
	conn := b.Connections()[0]

	inWindow := &captureSub{}
	outOfWindow := &captureSub{}
	if err := b.Subscribe(inWindow,
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Subscribe(outOfWindow,
		time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	comp := eventIn("e1", time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC))
	uid, err := conn.Create(context.Background(), comp)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if uid != "e1" {
		t.Errorf("uid = %q", uid)
	}

	if inWindow.added != 1 {
		t.Errorf("in-window added = %d, want 1", inWindow.added)
	}
	if outOfWindow.added != 0 {
		t.Errorf("out-of-window added = %d, want 0", outOfWindow.added)
	}

	comp.Props.SetText(ical.PropSummary, "changed")
	if err := conn.Modify(context.Background(), comp, ScopeAll); err != nil {
		t.Fatalf("modify: %v", err)
	}
	if inWindow.modified != 1 || outOfWindow.modified != 0 {
		t.Errorf("modified = %d/%d, want 1/0", inWindow.modified, outOfWindow.modified)
	}
	// The echoed payload is a clone; mutating the caller's component
	// afterwards must not touch what subscribers received.
	comp.Props.SetText(ical.PropSummary, "changed again")
	if got := inWindow.lastPayload.Props.Get(ical.PropSummary).Value; got != "changed" {
		t.Errorf("echoed payload shares state with caller: %q", got)
	}

	// Removals cannot be window-filtered, so every subscriber hears them.
	if err := conn.Remove(context.Background(), "e1", ""); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if inWindow.removed != 1 || outOfWindow.removed != 1 {
		t.Errorf("removed = %d/%d, want 1/1", inWindow.removed, outOfWindow.removed)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	mem := NewMemory(SourceInfo{ID: "mem", Name: "Memory"})
	b := testBroker(mem)
	conn := b.Connections()[0]

	sub := &captureSub{}
	if err := b.Subscribe(sub, time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b.Unsubscribe(sub)

	if _, err := conn.Create(context.Background(), eventIn("e1", time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.added != 0 {
		t.Errorf("added = %d after unsubscribe", sub.added)
	}
}
