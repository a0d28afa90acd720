// Package caldav provides a writable backend connection over a CalDAV
// collection: calendar discovery through the principal/home-set chain,
// windowed listing via calendar-query, and object PUT/DELETE for writes.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"caltab/internal/backend"
)

// transport adds basic auth and a client identifier to every request.
type transport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "caltab/1.0")
	return t.Transport.RoundTrip(req)
}

// Connection is a live CalDAV backend source.
type Connection struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger

	src          backend.SourceInfo
	endpoint     string
	calendarPath string
}

// New dials a CalDAV endpoint with basic auth and resolves the named
// calendar inside the account's calendar home set.
func New(logger *slog.Logger, src backend.SourceInfo, endpoint, username, password, calendarName string) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Transport: &transport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	c := &Connection{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		src:          src,
		endpoint:     endpoint,
	}

	logger.Info("finding calendar", "source", src.ID, "calendar", calendarName)
	calendarPath, err := c.findCalendar(context.Background(), calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar %q: %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("calendar resolved", "source", src.ID, "path", calendarPath)

	return c, nil
}

// findCalendar walks principal → home set → calendars and returns the
// path of the calendar with the matching display name.
func (c *Connection) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}
	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name %q", name)
}

// Source implements backend.Connection.
func (c *Connection) Source() backend.SourceInfo { return c.src }

// ReadOnly implements backend.Connection.
func (c *Connection) ReadOnly() bool { return false }

// Timezone implements backend.Connection.
func (c *Connection) Timezone(tzid string) (*time.Location, error) {
	return time.LoadLocation(tzid)
}

// Create implements backend.Connection. A missing UID is minted before
// the object is stored under <uid>.ics.
func (c *Connection) Create(ctx context.Context, comp *ical.Component) (string, error) {
	uid := ""
	if p := comp.Props.Get(ical.PropUID); p != nil {
		uid = p.Value
	}
	if uid == "" {
		uid = uuid.New().String()
		comp.Props.SetText(ical.PropUID, uid)
	}

	if err := c.put(ctx, uid, comp); err != nil {
		return "", err
	}
	c.logger.Info("component created", "source", c.src.ID, "uid", uid)
	return uid, nil
}

// Modify implements backend.Connection. The calendar object is rewritten
// whole; an edit scoped to a single instance carries its RECURRENCE-ID
// and the server applies the override semantics.
func (c *Connection) Modify(ctx context.Context, comp *ical.Component, scope backend.Scope) error {
	uid := ""
	if p := comp.Props.Get(ical.PropUID); p != nil {
		uid = p.Value
	}
	if uid == "" {
		return fmt.Errorf("caldav: modify without a UID")
	}

	c.logger.Debug("modifying component", "source", c.src.ID, "uid", uid, "scope", scope.String())
	return c.put(ctx, uid, comp)
}

// Remove implements backend.Connection. Removing a detached instance
// alone is not supported by object deletion; callers fall back to
// modifying the series.
func (c *Connection) Remove(ctx context.Context, uid, recurrenceID string) error {
	if recurrenceID != "" {
		return fmt.Errorf("caldav: removing a single instance of %q is not supported", uid)
	}
	if err := c.webdavClient.RemoveAll(ctx, c.objectPath(uid)); err != nil {
		return fmt.Errorf("failed to delete calendar object: %w", err)
	}
	c.logger.Info("component removed", "source", c.src.ID, "uid", uid)
	return nil
}

// List implements backend.Lister: one calendar-query per component kind,
// merged into a flat component slice.
func (c *Connection) List(ctx context.Context, start, end time.Time) ([]*ical.Component, error) {
	var out []*ical.Component
	for _, name := range []string{ical.CompEvent, "VTODO", "VJOURNAL"} {
		comps, err := c.query(ctx, name, start, end)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", name, err)
		}
		out = append(out, comps...)
	}
	return out, nil
}

func (c *Connection) query(ctx context.Context, compName string, start, end time.Time) ([]*ical.Component, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  compName,
				Start: start,
				End:   end,
			}},
		},
	}

	objs, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, err
	}

	var out []*ical.Component
	for _, obj := range objs {
		if obj.Data == nil {
			continue
		}
		for _, child := range obj.Data.Children {
			if child.Name == compName {
				out = append(out, child)
			}
		}
	}
	return out, nil
}

// put wraps the component in a VCALENDAR envelope and stores it at the
// object path for its UID. CalDAV PUT is an upsert, so create and modify
// share it.
func (c *Connection) put(ctx context.Context, uid string, comp *ical.Component) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//caltab//EN")
	cal.Children = append(cal.Children, comp)

	writer, err := c.webdavClient.Create(ctx, c.objectPath(uid))
	if err != nil {
		return fmt.Errorf("failed to create calendar object: %w", err)
	}
	defer writer.Close()

	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode component: %w", err)
	}
	return nil
}

func (c *Connection) objectPath(uid string) string {
	return path.Join(strings.TrimPrefix(c.calendarPath, c.endpoint), fmt.Sprintf("%s.ics", uid))
}
