package component

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"caltab/internal/backend"
	"caltab/internal/palette"
	"caltab/internal/recur"
)

// ID uniquely identifies a component within a row store. RecurrenceID is
// only set for a detached instance of a recurring item.
type ID struct {
	Source       string
	UID          string
	RecurrenceID string
}

// Record is the owned in-memory snapshot of one calendar item: the raw
// payload, the backend connection it belongs to, and lazily computed
// per-field caches. Caches are dropped by Invalidate, which is called from
// exactly two places: a backend modify notification and a display-timezone
// change.
type Record struct {
	conn backend.Connection
	comp *ical.Component
	id   ID
	kind Kind

	boundsOK bool
	bounds   recur.Instance

	categories *string
	color      *string
}

// NewRecord builds a record for a payload owned by the given connection.
func NewRecord(conn backend.Connection, comp *ical.Component) *Record {
	r := &Record{conn: conn}
	r.setPayload(comp)
	return r
}

// String encodes the identity as "source/uid" or "source/uid/recurrence-id",
// suitable for persisting a selection across sessions.
func (id ID) String() string {
	if id.RecurrenceID != "" {
		return id.Source + "/" + id.UID + "/" + id.RecurrenceID
	}
	return id.Source + "/" + id.UID
}

// ParseID decodes an identity produced by ID.String.
func ParseID(s string) (ID, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ID{}, fmt.Errorf("malformed component id %q", s)
	}
	id := ID{Source: parts[0], UID: parts[1]}
	if len(parts) == 3 {
		id.RecurrenceID = parts[2]
	}
	return id, nil
}

// IDOf computes the row-store identity for a payload on a connection.
func IDOf(conn backend.Connection, comp *ical.Component) ID {
	return ID{
		Source:       conn.Source().ID,
		UID:          UID(comp),
		RecurrenceID: RecurrenceID(comp),
	}
}

// Conn returns the owning backend connection. The record does not own the
// connection's lifetime.
func (r *Record) Conn() backend.Connection { return r.conn }

// Payload returns the raw component. Callers must not mutate it; edits go
// through the mutation pipeline on a clone.
func (r *Record) Payload() *ical.Component { return r.comp }

// ClonePayload deep-copies the raw component for an edit.
func (r *Record) ClonePayload() *ical.Component { return backend.CloneComponent(r.comp) }

// ID returns the record identity.
func (r *Record) ID() ID { return r.id }

// Kind returns the component kind.
func (r *Record) Kind() Kind { return r.kind }

// SetPayload replaces the raw payload in place and drops every cache.
// Used when a modified notification arrives for this identity.
func (r *Record) SetPayload(comp *ical.Component) {
	r.setPayload(comp)
}

func (r *Record) setPayload(comp *ical.Component) {
	r.comp = comp
	r.kind = KindOf(comp)
	r.id = IDOf(r.conn, comp)
	r.Invalidate()
}

// Invalidate drops all cached derived fields.
func (r *Record) Invalidate() {
	r.boundsOK = false
	r.bounds = recur.Instance{}
	r.categories = nil
	r.color = nil
}

// InstanceBounds resolves (and caches) the record's instance start/end for
// the given window, recurrence-resolved.
func (r *Record) InstanceBounds(rangeStart, rangeEnd time.Time, display *time.Location) recur.Instance {
	if r.boundsOK {
		return r.bounds
	}
	inst, ok := recur.Bounds(r.comp, rangeStart, rangeEnd, display)
	if ok {
		if !inst.Start.IsZero() && display != nil {
			inst.Start = inst.Start.In(display)
		}
		if !inst.End.IsZero() && display != nil {
			inst.End = inst.End.In(display)
		}
	}
	r.bounds = inst
	r.boundsOK = true
	return inst
}

// CategoriesString returns the cached comma-joined categories.
func (r *Record) CategoriesString() string {
	if r.categories == nil {
		s := Categories(r.comp)
		r.categories = &s
	}
	return *r.categories
}

// Color resolves (and caches) the record's display color via the registry,
// keyed by the owning source, honoring an explicitly configured color.
func (r *Record) Color(reg *palette.Registry) string {
	if r.color == nil {
		src := r.conn.Source()
		c := reg.Color(src.ID, src.Color)
		r.color = &c
	}
	return *r.color
}
