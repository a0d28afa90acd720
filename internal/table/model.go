// Package table is the tabular calendar model: an ordered row store of
// component records kept in sync with a subscription channel over a time
// window, a per-kind column resolver, and the asynchronous mutation
// pipeline that routes edits back to the owning backend.
package table

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"

	"caltab/internal/backend"
	"caltab/internal/component"
	"caltab/internal/config"
	"caltab/internal/dates"
	"caltab/internal/palette"
)

// Listener receives row-level and model-level change notifications.
// Structural callbacks always carry the exact index affected and are
// emitted after the row store has been updated.
type Listener interface {
	// RowInserted announces a new row at index i.
	RowInserted(i int)
	// RowChanged announces that the record at index i was replaced.
	RowChanged(i int)
	// RowDeleted announces the removal of the row previously at index i.
	RowDeleted(i int)
	// RowsRemoved carries the removed records in a batch so dependents
	// holding per-row state (open editors) can release it.
	RowsRemoved(recs []*component.Record)
	// RowAppended is advisory: a locally initiated create succeeded and
	// its row will arrive through the normal add-notification path.
	RowAppended()
	// ModelChanged announces a non-structural full-model change, e.g. a
	// display-timezone switch.
	ModelChanged()
}

// NoopListener implements Listener with empty methods, for embedding.
type NoopListener struct{}

func (NoopListener) RowInserted(int)                 {}
func (NoopListener) RowChanged(int)                  {}
func (NoopListener) RowDeleted(int)                  {}
func (NoopListener) RowsRemoved([]*component.Record) {}
func (NoopListener) RowAppended()                    {}
func (NoopListener) ModelChanged()                   {}

// AlertFunc presents a backend failure to the user. source is the
// backend's display name.
type AlertFunc func(source, msg string)

// DispatchFunc posts fn onto the context that owns the row store. The
// default runs fn inline, which is correct for single-threaded callers.
type DispatchFunc func(fn func())

// Model is the live tabular view over a set of backend connections. The
// row store is owned by the model and only mutated from the dispatch
// context: subscription notifications and job completions are both routed
// through the dispatch function before they touch a row.
type Model struct {
	logger  *slog.Logger
	cfg     *config.Config
	reg     *palette.Registry
	channel backend.Channel

	display *time.Location

	rows       []*component.Record
	start, end time.Time
	subscribed bool

	listeners []Listener

	dispatch DispatchFunc
	alert    AlertFunc
	defaults DefaultsProvider
	chooser  ScopeChooser
}

// NewModel builds a model over the given channel. The display timezone is
// taken from the configuration; an unknown zone falls back to UTC.
func NewModel(logger *slog.Logger, cfg *config.Config, reg *palette.Registry, channel backend.Channel) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if reg == nil {
		reg = palette.NewRegistry()
	}

	display, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unknown display timezone, using UTC", "timezone", cfg.Timezone)
		display = time.UTC
	}

	m := &Model{
		logger:   logger,
		cfg:      cfg,
		reg:      reg,
		channel:  channel,
		display:  display,
		dispatch: func(fn func()) { fn() },
	}
	m.defaults = &configDefaults{model: m}
	return m
}

// AddListener registers a change listener.
func (m *Model) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

// SetDispatchFunc installs the function used to post notification and
// job-completion work onto the row store's owning context.
func (m *Model) SetDispatchFunc(fn DispatchFunc) {
	if fn == nil {
		fn = func(f func()) { f() }
	}
	m.dispatch = fn
}

// SetAlertFunc installs the error presentation surface.
func (m *Model) SetAlertFunc(fn AlertFunc) { m.alert = fn }

// SetDefaultsProvider overrides the component defaults used by Append.
func (m *Model) SetDefaultsProvider(p DefaultsProvider) {
	if p == nil {
		p = &configDefaults{model: m}
	}
	m.defaults = p
}

// SetScopeChooser installs the recurrence-scope prompt. Without one,
// edits to recurring components apply to the whole series.
func (m *Model) SetScopeChooser(c ScopeChooser) { m.chooser = c }

// Config returns the model configuration.
func (m *Model) Config() *config.Config { return m.cfg }

// Registry returns the shared color registry.
func (m *Model) Registry() *palette.Registry { return m.reg }

// DisplayZone returns the current display timezone.
func (m *Model) DisplayZone() *time.Location { return m.display }

// SetDisplayZone switches the display timezone, invalidates every cached
// date/time field and announces a full-model change.
func (m *Model) SetDisplayZone(loc *time.Location) {
	if loc == nil || loc == m.display {
		return
	}
	m.display = loc
	for _, rec := range m.rows {
		rec.Invalidate()
	}
	for _, l := range m.listeners {
		l.ModelChanged()
	}
}

// Len returns the number of rows.
func (m *Model) Len() int { return len(m.rows) }

// Record returns the record at row i. Out-of-range indices are
// programming errors.
func (m *Model) Record(i int) *component.Record {
	if i < 0 || i >= len(m.rows) {
		panic(fmt.Sprintf("table: row %d out of range (%d rows)", i, len(m.rows)))
	}
	return m.rows[i]
}

// TimeRange returns the subscribed window.
func (m *Model) TimeRange() (start, end time.Time) { return m.start, m.end }

// SetTimeRange moves the subscribed window. Unchanged bounds are a no-op.
// When both bounds are set, end is clamped to the end of its day in the
// display zone. The old subscription is dropped and the row store cleared
// before the new window is seeded; a channel with no connections is
// treated as "no data yet" rather than an error.
func (m *Model) SetTimeRange(start, end time.Time) error {
	if !end.IsZero() && !start.IsZero() {
		end = dates.EndOfDay(end, m.display)
	}
	if m.subscribed && start.Equal(m.start) && end.Equal(m.end) {
		return nil
	}

	if m.subscribed {
		m.channel.Unsubscribe(m)
		m.subscribed = false
	}
	m.removeAll()

	m.start, m.end = start, end

	if len(m.channel.Connections()) == 0 {
		m.logger.Debug("no backends configured, window change deferred")
		return nil
	}

	err := m.channel.Subscribe(m, start, end)
	m.subscribed = true
	if err != nil {
		return fmt.Errorf("subscribe [%s, %s]: %w", start, end, err)
	}
	return nil
}

// removeAll empties the row store, announcing one deletion per row from
// the end plus one batch removal with all the records.
func (m *Model) removeAll() {
	if len(m.rows) == 0 {
		return
	}
	removed := make([]*component.Record, len(m.rows))
	copy(removed, m.rows)
	for i := len(m.rows) - 1; i >= 0; i-- {
		m.rows = m.rows[:i]
		for _, l := range m.listeners {
			l.RowDeleted(i)
		}
	}
	for _, l := range m.listeners {
		l.RowsRemoved(removed)
	}
}

// indexOf locates a record by identity, -1 when absent.
func (m *Model) indexOf(id component.ID) int {
	for i, rec := range m.rows {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}

// ComponentAdded implements backend.Subscriber.
func (m *Model) ComponentAdded(conn backend.Connection, comp *ical.Component) {
	m.dispatch(func() { m.applyAdded(conn, comp) })
}

// ComponentModified implements backend.Subscriber.
func (m *Model) ComponentModified(conn backend.Connection, comp *ical.Component) {
	m.dispatch(func() { m.applyModified(conn, comp) })
}

// ComponentRemoved implements backend.Subscriber.
func (m *Model) ComponentRemoved(conn backend.Connection, uid, recurrenceID string) {
	m.dispatch(func() { m.applyRemoved(conn, uid, recurrenceID) })
}

// Freeze implements backend.Subscriber. Change notifications are already
// delivered one at a time with exact indices, so coalescing hints are
// ignored.
func (m *Model) Freeze() {}

// Thaw implements backend.Subscriber.
func (m *Model) Thaw() {}

func (m *Model) applyAdded(conn backend.Connection, comp *ical.Component) {
	id := component.IDOf(conn, comp)
	if i := m.indexOf(id); i >= 0 {
		// An add racing a modify for the same identity collapses into
		// a modify, keeping the one-record-per-identity invariant.
		m.rows[i].SetPayload(comp)
		for _, l := range m.listeners {
			l.RowChanged(i)
		}
		return
	}

	rec := component.NewRecord(conn, comp)
	m.rows = append(m.rows, rec)
	i := len(m.rows) - 1
	for _, l := range m.listeners {
		l.RowInserted(i)
	}
}

func (m *Model) applyModified(conn backend.Connection, comp *ical.Component) {
	id := component.IDOf(conn, comp)
	i := m.indexOf(id)
	if i < 0 {
		m.applyAdded(conn, comp)
		return
	}
	m.rows[i].SetPayload(comp)
	for _, l := range m.listeners {
		l.RowChanged(i)
	}
}

func (m *Model) applyRemoved(conn backend.Connection, uid, recurrenceID string) {
	id := component.ID{Source: conn.Source().ID, UID: uid, RecurrenceID: recurrenceID}
	i := m.indexOf(id)
	if i < 0 {
		// Remove for an identity we never saw is benign.
		return
	}
	rec := m.rows[i]
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	for _, l := range m.listeners {
		l.RowDeleted(i)
	}
	for _, l := range m.listeners {
		l.RowsRemoved([]*component.Record{rec})
	}
}

// alertf routes a backend failure to the alert surface with the source's
// display name attached, falling back to the log when none is installed.
func (m *Model) alertf(conn backend.Connection, err error) {
	name := conn.Source().Name
	if m.alert != nil {
		m.alert(name, err.Error())
		return
	}
	m.logger.Error("backend operation failed", "source", name, "error", err)
}
