package caldav

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"
)

// Client is a CalDAV client for the external calendar. It is the
// in-process replacement for the old sync_calendar.py helper: one PUT
// or DELETE per schedule mutation, one range query per mirror run.
// One Client is shared between HTTP handlers and the mirror goroutine,
// so the lazy caches are guarded by mu.
type Client struct {
	baseURL      string
	username     string
	password     string
	calendarURL  string // explicit collection hint
	calendarName string // display-name substring hint

	mu           sync.Mutex
	client       *caldav.Client
	calendarPath string // resolved collection, cached after first lookup
}

// NewClient creates a new CalDAV client.
func NewClient(baseURL, username, password string) *Client {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
	}
}

// Enabled returns true if the client has credentials. When false every
// sync operation is skipped by the callers.
func (c *Client) Enabled() bool {
	return c.username != "" && c.password != ""
}

// SetCalendarHints configures which calendar collection to use: an
// exact collection URL wins, otherwise the first calendar whose display
// name contains the name hint, otherwise the last discovered one.
func (c *Client) SetCalendarHints(url, name string) {
	c.calendarURL = url
	c.calendarName = name
}

// connect establishes connection to the CalDAV server.
func (c *Client) connect() (*caldav.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendars for the account.
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{
			Path:        cal.Path,
			DisplayName: cal.Name,
		})
	}
	return result, nil
}

// selectCalendar resolves the target collection using the configured
// hints and caches the answer for the lifetime of the client. Two
// concurrent first lookups may both discover; the second cached write
// is harmless since the hints don't change.
func (c *Client) selectCalendar(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.calendarPath != "" {
		p := c.calendarPath
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	calendars, err := c.DiscoverCalendars(ctx)
	if err != nil {
		return "", err
	}
	if len(calendars) == 0 {
		return "", fmt.Errorf("no calendars found for this account")
	}

	var resolved string
	if target := strings.TrimRight(c.calendarURL, "/"); target != "" {
		for _, cal := range calendars {
			if strings.TrimRight(cal.Path, "/") == target {
				resolved = cal.Path
				break
			}
		}
	}

	if resolved == "" {
		if hint := strings.ToLower(c.calendarName); hint != "" {
			for _, cal := range calendars {
				if cal.DisplayName != "" && strings.Contains(strings.ToLower(cal.DisplayName), hint) {
					resolved = cal.Path
					break
				}
			}
		}
	}

	if resolved == "" {
		resolved = calendars[len(calendars)-1].Path
	}

	c.mu.Lock()
	c.calendarPath = resolved
	c.mu.Unlock()
	return resolved, nil
}

// Push creates or updates the remote event for a schedule item and
// returns its linkage. A prior linkage with an event href makes this an
// update in place, so repeated pushes never duplicate the event.
func (c *Client) Push(ctx context.Context, event *Event, prior *Linkage) (*Linkage, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("CalDAV not configured")
	}

	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	uid := event.UID
	if prior != nil && prior.UID != "" {
		uid = prior.UID
	}
	if uid == "" {
		uid = generateUID()
	}
	event.UID = uid

	var href, calendarURL string
	if prior != nil && prior.EventHref != "" {
		// An existing href is authoritative, even if the rest of the
		// linkage never made it into the store.
		href = prior.EventHref
		calendarURL = prior.CalendarURL
		if calendarURL == "" {
			calendarURL = path.Dir(strings.TrimRight(href, "/")) + "/"
		}
	} else {
		calendarURL, err = c.selectCalendar(ctx)
		if err != nil {
			return nil, err
		}
		href = joinPath(calendarURL, uid+".ics")
	}

	if _, err := client.PutCalendarObject(ctx, href, eventToICS(event)); err != nil {
		return nil, fmt.Errorf("put event: %w", err)
	}

	return &Linkage{UID: uid, CalendarURL: calendarURL, EventHref: href}, nil
}

// Remove deletes the remote event behind a linkage. Missing linkage or
// missing href means there is nothing to do.
func (c *Client) Remove(ctx context.Context, linkage *Linkage) error {
	if !c.Enabled() || linkage == nil || linkage.EventHref == "" {
		return nil
	}

	client, err := c.connect()
	if err != nil {
		return err
	}

	if err := client.RemoveAll(ctx, linkage.EventHref); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Upcoming returns the events in the configured calendar between from
// and to.
func (c *Client) Upcoming(ctx context.Context, from, to time.Time) ([]Event, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("CalDAV not configured")
	}

	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	calendarPath, err := c.selectCalendar(ctx)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: from,
					End:   to,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []Event
	for _, obj := range objects {
		event, err := parseCalendarObject(&obj)
		if err != nil {
			continue // Skip invalid events
		}
		event.CalendarURL = calendarPath
		events = append(events, event)
	}
	return events, nil
}

// parseCalendarObject parses a CalDAV object into an Event.
func parseCalendarObject(obj *caldav.CalendarObject) (Event, error) {
	event := Event{Href: obj.Path}

	if obj.Data == nil {
		return event, fmt.Errorf("no data in calendar object")
	}

	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}

		if prop := comp.Props.Get(ical.PropUID); prop != nil {
			event.UID = prop.Value
		}
		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			event.Summary = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDescription); prop != nil {
			event.Description = prop.Value
		}
		if prop := comp.Props.Get(ical.PropLocation); prop != nil {
			event.Location = prop.Value
		}

		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
			t, err := prop.DateTime(time.UTC)
			if err == nil {
				event.StartTime = t
			}
			if valueType := prop.Params.Get(ical.ParamValue); valueType == string(ical.ValueDate) {
				event.AllDay = true
			}
		}
		if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
			t, err := prop.DateTime(time.UTC)
			if err == nil {
				event.EndTime = t
			}
		}

		break // Only process first VEVENT
	}

	if event.UID == "" {
		return event, fmt.Errorf("event without UID")
	}
	return event, nil
}

// eventToICS converts an Event to iCalendar format.
func eventToICS(event *Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//YiyuSite//CalDAV Sync//CN")

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetText(ical.PropSummary, event.Summary)

	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}

	if event.AllDay {
		vevent.Props.SetDate(ical.PropDateTimeStart, event.StartTime)
		if !event.EndTime.IsZero() {
			vevent.Props.SetDate(ical.PropDateTimeEnd, event.EndTime)
		}
	} else {
		// Convert to UTC explicitly - iCalendar will use Z suffix
		vevent.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime.UTC())
		if !event.EndTime.IsZero() {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, event.EndTime.UTC())
		}
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}

func joinPath(collection, name string) string {
	if !strings.HasSuffix(collection, "/") {
		collection += "/"
	}
	return collection + name
}

// generateUID generates a unique event ID. The random suffix keeps two
// events created in the same instant from colliding.
func generateUID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%d-%s@yiyusite", time.Now().UnixNano(), hex.EncodeToString(buf))
}
