package caldav

import "time"

// Calendar represents one collection discovered on the CalDAV account.
type Calendar struct {
	Path        string
	DisplayName string
}

// Event is a calendar event crossing the CalDAV boundary, in either
// direction. Href and CalendarURL are set on events read back from the
// server.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	Href        string
	CalendarURL string
}

// Linkage is the trio of identifiers tying a local schedule record to a
// remote event. EventHref is the per-event resource path used for
// update and delete targeting.
type Linkage struct {
	UID         string
	CalendarURL string
	EventHref   string
}
