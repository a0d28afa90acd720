package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"caltab/internal/recur"
)

// Memory is an in-process backend used by tests and the offline CLI path.
// It stores component payloads keyed by (uid, recurrence-id) and lists them
// by window intersection. Notifications are produced by the broker's echo
// wrapper, which mirrors how the networked backends behave.
type Memory struct {
	src      SourceInfo
	readOnly bool

	mu    sync.Mutex
	comps map[string]*ical.Component
}

// NewMemory returns an empty writable in-memory backend.
func NewMemory(src SourceInfo) *Memory {
	return &Memory{
		src:   src,
		comps: make(map[string]*ical.Component),
	}
}

// SetReadOnly toggles write refusal.
func (m *Memory) SetReadOnly(ro bool) { m.readOnly = ro }

// Put seeds a component without going through Create. Intended for test
// setup before a subscription is established.
func (m *Memory) Put(comp *ical.Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comps[memKey(componentUID(comp), componentRecurrenceID(comp))] = CloneComponent(comp)
}

func (m *Memory) Source() SourceInfo { return m.src }
func (m *Memory) ReadOnly() bool     { return m.readOnly }

func (m *Memory) Timezone(tzid string) (*time.Location, error) {
	return time.LoadLocation(tzid)
}

func (m *Memory) Create(ctx context.Context, comp *ical.Component) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.readOnly {
		return "", ErrReadOnly
	}

	stored := CloneComponent(comp)
	uid := componentUID(stored)
	if uid == "" {
		uid = uuid.New().String()
		stored.Props.SetText(ical.PropUID, uid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.comps[memKey(uid, componentRecurrenceID(stored))] = stored
	return uid, nil
}

func (m *Memory) Modify(ctx context.Context, comp *ical.Component, scope Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.readOnly {
		return ErrReadOnly
	}

	uid := componentUID(comp)
	key := memKey(uid, componentRecurrenceID(comp))

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comps[key]; !ok {
		return fmt.Errorf("memory: modify of unknown component %q", uid)
	}
	m.comps[key] = CloneComponent(comp)
	return nil
}

func (m *Memory) Remove(ctx context.Context, uid, recurrenceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.readOnly {
		return ErrReadOnly
	}

	key := memKey(uid, recurrenceID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comps[key]; !ok {
		return fmt.Errorf("memory: remove of unknown component %q", uid)
	}
	delete(m.comps, key)
	return nil
}

// List implements Lister.
func (m *Memory) List(ctx context.Context, start, end time.Time) ([]*ical.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ical.Component
	for _, comp := range m.comps {
		if recur.Intersects(comp, start, end) {
			out = append(out, CloneComponent(comp))
		}
	}
	return out, nil
}

func memKey(uid, recurrenceID string) string {
	return uid + "\x00" + recurrenceID
}

func componentUID(comp *ical.Component) string {
	if p := comp.Props.Get(ical.PropUID); p != nil {
		return p.Value
	}
	return ""
}

func componentRecurrenceID(comp *ical.Component) string {
	if p := comp.Props.Get("RECURRENCE-ID"); p != nil {
		return p.Value
	}
	return ""
}
