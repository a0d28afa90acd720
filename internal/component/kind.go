// Package component holds the in-memory snapshot of one calendar item: the
// raw iCalendar payload, its owning backend connection, precomputed
// per-field caches, and the kind-specific property policies (task
// completion consistency, due-state classification).
package component

import "github.com/emersion/go-ical"

// Kind is the closed set of component kinds the model handles.
type Kind int

const (
	KindEvent Kind = iota
	KindTask
	KindMemo
)

// Name returns the iCalendar component name for the kind.
func (k Kind) Name() string {
	switch k {
	case KindTask:
		return "VTODO"
	case KindMemo:
		return "VJOURNAL"
	default:
		return ical.CompEvent
	}
}

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindMemo:
		return "memo"
	default:
		return "event"
	}
}

// KindOf maps a payload's component name to its kind. Unknown names fall
// back to KindEvent.
func KindOf(comp *ical.Component) Kind {
	switch comp.Name {
	case "VTODO":
		return KindTask
	case "VJOURNAL":
		return KindMemo
	default:
		return KindEvent
	}
}
