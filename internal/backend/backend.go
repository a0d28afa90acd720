// Package backend defines the boundary between the table model and the
// calendar/task/memo data providers: the connection a component is written
// through, and the subscription channel that streams add/modify/remove
// notifications for a time window.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/emersion/go-ical"
)

// SourceInfo identifies a backend source for display and color assignment.
type SourceInfo struct {
	ID    string
	Name  string
	Color string // explicit configured color, empty for palette assignment
}

// Scope is the recurrence-modification scope of a write.
type Scope int

const (
	// ScopeThis applies the edit to a single instance.
	ScopeThis Scope = iota
	// ScopeThisAndFuture applies the edit to the instance and all later ones.
	ScopeThisAndFuture
	// ScopeAll applies the edit to the whole series.
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeThis:
		return "this"
	case ScopeThisAndFuture:
		return "this-and-future"
	case ScopeAll:
		return "all"
	default:
		return "unknown"
	}
}

// ErrReadOnly is returned by writes against a read-only connection.
var ErrReadOnly = errors.New("backend: source is read-only")

// Connection is a live link to one backend source.
type Connection interface {
	// Source identifies the backend for display and color resolution.
	Source() SourceInfo

	// ReadOnly reports whether writes are refused.
	ReadOnly() bool

	// Timezone resolves a TZID reference known to this backend.
	Timezone(tzid string) (*time.Location, error)

	// Create stores a new component and returns its UID.
	Create(ctx context.Context, comp *ical.Component) (string, error)

	// Modify commits a changed component with the given recurrence scope.
	Modify(ctx context.Context, comp *ical.Component, scope Scope) error

	// Remove deletes the component (or the detached instance when
	// recurrenceID is non-empty).
	Remove(ctx context.Context, uid, recurrenceID string) error
}

// Lister is implemented by connections that can enumerate their components
// within a time window. The broker uses it to seed subscribers.
type Lister interface {
	List(ctx context.Context, start, end time.Time) ([]*ical.Component, error)
}

// Subscriber receives push notifications from a Channel. Freeze/Thaw are
// coalescing hints a subscriber may ignore.
type Subscriber interface {
	ComponentAdded(conn Connection, comp *ical.Component)
	ComponentModified(conn Connection, comp *ical.Component)
	ComponentRemoved(conn Connection, uid, recurrenceID string)
	Freeze()
	Thaw()
}

// Channel streams component notifications for a time range across a set of
// backend connections.
type Channel interface {
	// Subscribe registers sub and pushes an add notification for every
	// component intersecting [start, end]. Per-backend failures are
	// joined into the returned error; successfully listed backends are
	// still delivered.
	Subscribe(sub Subscriber, start, end time.Time) error

	// Unsubscribe stops notifications to sub.
	Unsubscribe(sub Subscriber)

	// Connections returns the connections behind this channel.
	Connections() []Connection
}
