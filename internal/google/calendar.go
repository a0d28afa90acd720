// Package google provides a read-only backend connection over the Google
// Calendar API plus the OAuth token bootstrap used by the auth command.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"caltab/internal/backend"
)

const credentialsFile = "credentials.json"

// Connection is a read-only backend source over one Google calendar.
// Writes are refused with backend.ErrReadOnly; the mutation pipeline
// checks ReadOnly before attempting them.
type Connection struct {
	service    *calendar.Service
	logger     *slog.Logger
	src        backend.SourceInfo
	calendarID string
}

// New creates a connection for the given calendar ID, authenticated with
// the token saved for accountName by the auth command.
func New(ctx context.Context, logger *slog.Logger, src backend.SourceInfo, clientID, clientSecret, accountName, calendarID string) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	tokenFile := fmt.Sprintf("token-%s.json", accountName)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	client := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Connection{
		service:    service,
		logger:     logger,
		src:        src,
		calendarID: calendarID,
	}, nil
}

// Source implements backend.Connection.
func (c *Connection) Source() backend.SourceInfo { return c.src }

// ReadOnly implements backend.Connection.
func (c *Connection) ReadOnly() bool { return true }

// Timezone implements backend.Connection.
func (c *Connection) Timezone(tzid string) (*time.Location, error) {
	return time.LoadLocation(tzid)
}

// Create implements backend.Connection.
func (c *Connection) Create(ctx context.Context, comp *ical.Component) (string, error) {
	return "", fmt.Errorf("%s: %w", c.src.Name, backend.ErrReadOnly)
}

// Modify implements backend.Connection.
func (c *Connection) Modify(ctx context.Context, comp *ical.Component, scope backend.Scope) error {
	return fmt.Errorf("%s: %w", c.src.Name, backend.ErrReadOnly)
}

// Remove implements backend.Connection.
func (c *Connection) Remove(ctx context.Context, uid, recurrenceID string) error {
	return fmt.Errorf("%s: %w", c.src.Name, backend.ErrReadOnly)
}

// List implements backend.Lister: a windowed, single-events query
// converted into iCalendar payloads.
func (c *Connection) List(ctx context.Context, start, end time.Time) ([]*ical.Component, error) {
	c.logger.Debug("fetching events", "source", c.src.ID, "calendar", c.calendarID)

	events, err := c.service.Events.List(c.calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	var out []*ical.Component
	for _, item := range events.Items {
		comp, err := toComponent(item)
		if err != nil {
			c.logger.Warn("skipping event", "source", c.src.ID, "id", item.Id, "error", err)
			continue
		}
		out = append(out, comp)
	}
	c.logger.Info("fetched events", "source", c.src.ID, "count", len(out))
	return out, nil
}

// toComponent converts one Google Calendar event into a VEVENT payload.
// All-day events carry date-only start/end values.
func toComponent(item *calendar.Event) (*ical.Component, error) {
	comp := ical.NewComponent(ical.CompEvent)

	uid := item.ICalUID
	if uid == "" {
		uid = item.Id
	}
	comp.Props.SetText(ical.PropUID, uid)
	comp.Props.SetText(ical.PropSummary, item.Summary)
	if item.Description != "" {
		comp.Props.SetText(ical.PropDescription, item.Description)
	}
	if item.Location != "" {
		comp.Props.SetText(ical.PropLocation, item.Location)
	}
	if item.Organizer != nil && item.Organizer.Email != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + item.Organizer.Email
		comp.Props.Add(p)
	}
	for _, a := range item.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + a.Email
		comp.Props.Add(p)
	}
	if item.Transparency == "transparent" {
		comp.Props.SetText("TRANSP", "TRANSPARENT")
	}

	if err := setEventTime(comp, ical.PropDateTimeStart, item.Start); err != nil {
		return nil, err
	}
	if err := setEventTime(comp, ical.PropDateTimeEnd, item.End); err != nil {
		return nil, err
	}
	return comp, nil
}

func setEventTime(comp *ical.Component, name string, edt *calendar.EventDateTime) error {
	if edt == nil {
		return nil
	}
	p := ical.NewProp(name)
	switch {
	case edt.DateTime != "":
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return fmt.Errorf("malformed %s time %q: %w", name, edt.DateTime, err)
		}
		p.SetDateTime(t)
	case edt.Date != "":
		t, err := time.Parse("2006-01-02", edt.Date)
		if err != nil {
			return fmt.Errorf("malformed %s date %q: %w", name, edt.Date, err)
		}
		p.SetDate(t)
	default:
		return nil
	}
	comp.Props.Set(p)
	return nil
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config
// for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(context.Background(), authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the account names with a saved token file.
func GetTokenAccounts() ([]string, error) {
	files, err := os.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
