package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/emersion/go-ical"

	"caltab/internal/recur"
)

// CloneComponent deep-copies a component payload, including parameters and
// child components. Writes always operate on a clone so the live record is
// only touched by the notification that echoes the committed change.
func CloneComponent(comp *ical.Component) *ical.Component {
	out := ical.NewComponent(comp.Name)
	for name, props := range comp.Props {
		copied := make([]ical.Prop, len(props))
		for i, p := range props {
			np := p
			np.Params = make(ical.Params, len(p.Params))
			for k, vs := range p.Params {
				np.Params[k] = append([]string(nil), vs...)
			}
			copied[i] = np
		}
		out.Props[name] = copied
	}
	for _, child := range comp.Children {
		out.Children = append(out.Children, CloneComponent(child))
	}
	return out
}

type window struct {
	start, end time.Time
}

// Broker is the push channel over a fixed set of connections. Subscribing
// seeds the subscriber with every component intersecting its window; writes
// through the broker's connections are echoed back to all subscribers whose
// window they intersect.
type Broker struct {
	logger *slog.Logger
	conns  []Connection

	mu   sync.Mutex
	subs map[Subscriber]window
}

// NewBroker wraps the given connections into a subscription channel.
func NewBroker(logger *slog.Logger, conns ...Connection) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		logger: logger,
		subs:   make(map[Subscriber]window),
	}
	for _, c := range conns {
		b.conns = append(b.conns, &echoConn{inner: c, broker: b})
	}
	return b
}

// Subscribe implements Channel.
func (b *Broker) Subscribe(sub Subscriber, start, end time.Time) error {
	b.mu.Lock()
	b.subs[sub] = window{start: start, end: end}
	b.mu.Unlock()

	var errs []error
	for _, conn := range b.conns {
		lister, ok := conn.(Lister)
		if !ok {
			continue
		}
		comps, err := lister.List(context.Background(), start, end)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", conn.Source().Name, err))
			continue
		}
		b.logger.Debug("subscription seeded", "source", conn.Source().ID, "count", len(comps))
		for _, comp := range comps {
			sub.ComponentAdded(conn, comp)
		}
	}
	return errors.Join(errs...)
}

// Unsubscribe implements Channel.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Connections implements Channel.
func (b *Broker) Connections() []Connection {
	out := make([]Connection, len(b.conns))
	copy(out, b.conns)
	return out
}

func (b *Broker) subscribersFor(comp *ical.Component) []Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Subscriber, 0, len(b.subs))
	for sub, w := range b.subs {
		if comp == nil || recur.Intersects(comp, w.start, w.end) {
			out = append(out, sub)
		}
	}
	return out
}

func (b *Broker) notifyAdded(conn Connection, comp *ical.Component) {
	for _, sub := range b.subscribersFor(comp) {
		sub.ComponentAdded(conn, comp)
	}
}

func (b *Broker) notifyModified(conn Connection, comp *ical.Component) {
	for _, sub := range b.subscribersFor(comp) {
		sub.ComponentModified(conn, comp)
	}
}

func (b *Broker) notifyRemoved(conn Connection, uid, recurrenceID string) {
	for _, sub := range b.subscribersFor(nil) {
		sub.ComponentRemoved(conn, uid, recurrenceID)
	}
}

// echoConn wraps a connection so committed writes are announced to the
// broker's subscribers. Backends that push their own notifications do not
// need the echo, but CalDAV and Google do not loop back their writes.
type echoConn struct {
	inner  Connection
	broker *Broker
}

func (e *echoConn) Source() SourceInfo { return e.inner.Source() }
func (e *echoConn) ReadOnly() bool     { return e.inner.ReadOnly() }

func (e *echoConn) Timezone(tzid string) (*time.Location, error) {
	return e.inner.Timezone(tzid)
}

func (e *echoConn) Create(ctx context.Context, comp *ical.Component) (string, error) {
	uid, err := e.inner.Create(ctx, comp)
	if err != nil {
		return "", err
	}
	echo := CloneComponent(comp)
	echo.Props.SetText(ical.PropUID, uid)
	e.broker.notifyAdded(e, echo)
	return uid, nil
}

func (e *echoConn) Modify(ctx context.Context, comp *ical.Component, scope Scope) error {
	if err := e.inner.Modify(ctx, comp, scope); err != nil {
		return err
	}
	e.broker.notifyModified(e, CloneComponent(comp))
	return nil
}

func (e *echoConn) Remove(ctx context.Context, uid, recurrenceID string) error {
	if err := e.inner.Remove(ctx, uid, recurrenceID); err != nil {
		return err
	}
	e.broker.notifyRemoved(e, uid, recurrenceID)
	return nil
}

func (e *echoConn) List(ctx context.Context, start, end time.Time) ([]*ical.Component, error) {
	if lister, ok := e.inner.(Lister); ok {
		return lister.List(ctx, start, end)
	}
	return nil, nil
}
