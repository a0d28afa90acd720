package table

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"caltab/internal/backend"
	"caltab/internal/component"
	"caltab/internal/dates"
	"caltab/internal/recur"
)

// DefaultsProvider constructs a fresh component with backend- and
// policy-appropriate defaults before append values are applied on top.
type DefaultsProvider interface {
	NewComponent(conn backend.Connection, kind component.Kind) *ical.Component
}

// ScopeChooser resolves how far an edit to a recurring component applies.
// ok=false means the user cancelled, discarding the edit entirely.
type ScopeChooser interface {
	ChooseScope(rec *component.Record) (scope backend.Scope, ok bool)
}

// ErrNoDefaultSource is reported when an append cannot resolve the
// configured default source to a live connection.
var ErrNoDefaultSource = errors.New("table: default source is not connected")

// timeNow is stubbed by tests that pin "now".
var timeNow = time.Now

func timeNowUTC() time.Time { return timeNow().UTC() }

// Job is one outstanding backend write. Cancellation is cooperative: the
// job checks its context between backend round-trips, and once cancelled
// produces no further side effects and no alert. Cancelling after the
// backend has committed does not roll the commit back; the echoed
// notification still updates the row store.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel requests cooperative cancellation.
func (j *Job) Cancel() { j.cancel() }

// Wait blocks until the job has finished or been cancelled.
func (j *Job) Wait() { <-j.done }

func (m *Model) runJob(fn func(ctx context.Context)) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(j.done)
		defer cancel()
		fn(ctx)
	}()
	return j
}

// jobFailed routes a backend error to the alert surface on the dispatch
// context. Cancellation is not a failure.
func (m *Model) jobFailed(conn backend.Connection, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.dispatch(func() { m.alertf(conn, err) })
}

// Append creates a new component of the given kind on the default
// source. values is snapshotted immediately; the backend work runs as a
// cancellable job. On success a purely advisory RowAppended is announced;
// the row itself arrives through the normal add-notification path once
// the backend echoes the create. On failure the error is alerted and the
// row store is untouched.
func (m *Model) Append(kind component.Kind, values map[Column]any) *Job {
	for col := range values {
		if !col.AppliesTo(kind) || readOnlyColumn(col) {
			panic(fmt.Sprintf("table: column %s is not writable for %s rows", col, kind))
		}
	}
	snapshot := make(map[Column]any, len(values))
	for col, v := range values {
		snapshot[col] = v
	}

	return m.runJob(func(ctx context.Context) {
		conn := m.connection(m.cfg.DefaultSource)
		if conn == nil {
			m.dispatch(func() {
				m.logger.Error("append failed", "source", m.cfg.DefaultSource, "error", ErrNoDefaultSource)
				if m.alert != nil {
					m.alert(m.cfg.DefaultSource, ErrNoDefaultSource.Error())
				}
			})
			return
		}

		comp := m.defaults.NewComponent(conn, kind)
		for _, col := range Columns(kind) {
			v, ok := snapshot[col]
			if !ok {
				continue
			}
			if warn := applyValue(comp, kind, col, v); warn != nil {
				m.dispatch(func() { m.alertf(conn, warn) })
			}
		}

		if ctx.Err() != nil {
			return
		}
		uid, err := conn.Create(ctx, comp)
		if err != nil {
			m.jobFailed(conn, err)
			return
		}
		m.logger.Debug("component created", "uid", uid, "source", conn.Source().ID, "kind", kind.String())
		m.dispatch(func() {
			for _, l := range m.listeners {
				l.RowAppended()
			}
		})
	})
}

// SetValue routes a cell edit through the mutation pipeline: the edit is
// applied to a clone of the payload and committed by a cancellable job;
// the live row only changes when the backend echoes the modify. An edit
// to a recurring component first consults the scope chooser; cancelling
// the prompt discards the edit with no backend call and a nil job.
// Read-only sources and columns are refused with an error.
func (m *Model) SetValue(row int, col Column, v any) (*Job, error) {
	rec := m.Record(row)
	m.checkColumn(rec, col)
	if readOnlyColumn(col) {
		return nil, fmt.Errorf("table: column %s is read-only", col)
	}
	conn := rec.Conn()
	if conn.ReadOnly() {
		return nil, fmt.Errorf("%s: %w", conn.Source().Name, backend.ErrReadOnly)
	}

	scope := backend.ScopeAll
	if recur.IsRecurring(rec.Payload()) && m.chooser != nil {
		s, ok := m.chooser.ChooseScope(rec)
		if !ok {
			return nil, nil
		}
		scope = s
	}

	clone := rec.ClonePayload()
	if warn := applyValue(clone, rec.Kind(), col, v); warn != nil {
		m.alertf(conn, warn)
	}

	job := m.runJob(func(ctx context.Context) {
		if ctx.Err() != nil {
			return
		}
		if err := conn.Modify(ctx, clone, scope); err != nil {
			m.jobFailed(conn, err)
		}
	})
	return job, nil
}

// Remove deletes the row's component on its backend. The row leaves the
// store when the removal notification arrives.
func (m *Model) Remove(row int) (*Job, error) {
	rec := m.Record(row)
	conn := rec.Conn()
	if conn.ReadOnly() {
		return nil, fmt.Errorf("%s: %w", conn.Source().Name, backend.ErrReadOnly)
	}

	id := rec.ID()
	job := m.runJob(func(ctx context.Context) {
		if ctx.Err() != nil {
			return
		}
		if err := conn.Remove(ctx, id.UID, id.RecurrenceID); err != nil {
			m.jobFailed(conn, err)
		}
	})
	return job, nil
}

// connection resolves a source ID to one of the channel's connections.
func (m *Model) connection(sourceID string) backend.Connection {
	for _, conn := range m.channel.Connections() {
		if conn.Source().ID == sourceID {
			return conn
		}
	}
	return nil
}

// configDefaults is the built-in defaults provider: UID and stamps on
// every component, the configured default reminder and classification,
// not-started status for tasks, and a date-only "today" start for memos.
type configDefaults struct {
	model *Model
}

func (d *configDefaults) NewComponent(conn backend.Connection, kind component.Kind) *ical.Component {
	m := d.model
	comp := ical.NewComponent(kind.Name())
	comp.Props.SetText(ical.PropUID, uuid.New().String())

	now := timeNowUTC()
	stamp := ical.NewProp(ical.PropDateTimeStamp)
	stamp.SetDateTime(now)
	comp.Props.Set(stamp)
	created := ical.NewProp(ical.PropCreated)
	created.SetDateTime(now)
	comp.Props.Set(created)

	if m.cfg.ClassifyPrivate {
		component.SetClassification(comp, component.ClassPrivate)
	}
	if m.cfg.DefaultReminder.Enabled {
		comp.Children = append(comp.Children, defaultAlarm(m.cfg.DefaultReminder.Interval, m.cfg.DefaultReminder.Units))
	}

	switch kind {
	case component.KindTask:
		component.SetStatus(comp, component.StatusNeedsAction)
	case component.KindMemo:
		component.SetDateValue(comp, ical.PropDateTimeStart, dates.Today(m.display))
	}
	return comp
}

// defaultAlarm builds a display alarm triggering the configured interval
// before the component's start.
func defaultAlarm(interval int, units string) *ical.Component {
	var trigger string
	switch units {
	case "days":
		trigger = fmt.Sprintf("-P%dD", interval)
	case "hours":
		trigger = fmt.Sprintf("-PT%dH", interval)
	default:
		trigger = fmt.Sprintf("-PT%dM", interval)
	}

	alarm := ical.NewComponent("VALARM")
	alarm.Props.SetText("ACTION", "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, "Reminder")
	p := ical.NewProp("TRIGGER")
	p.Value = trigger
	alarm.Props.Set(p)
	return alarm
}
