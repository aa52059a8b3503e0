package caldav

import (
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

func TestEventToICSTimed(t *testing.T) {
	tz, _ := time.LoadLocation("Europe/Berlin")
	event := &Event{
		UID:         "uid-1",
		Summary:     "meeting",
		Description: "bring notes",
		StartTime:   time.Date(2026, 2, 12, 8, 0, 0, 0, tz),
		EndTime:     time.Date(2026, 2, 12, 9, 0, 0, 0, tz),
	}

	cal := eventToICS(event)

	var vevent *ical.Component
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent {
			vevent = child
			break
		}
	}
	if vevent == nil {
		t.Fatal("no VEVENT in calendar")
	}

	if got := vevent.Props.Get(ical.PropUID).Value; got != "uid-1" {
		t.Errorf("UID = %q", got)
	}
	if got := vevent.Props.Get(ical.PropSummary).Value; got != "meeting" {
		t.Errorf("SUMMARY = %q", got)
	}
	if got := vevent.Props.Get(ical.PropDescription).Value; got != "bring notes" {
		t.Errorf("DESCRIPTION = %q", got)
	}

	start, err := vevent.Props.Get(ical.PropDateTimeStart).DateTime(time.UTC)
	if err != nil {
		t.Fatalf("parse DTSTART: %v", err)
	}
	if !start.Equal(event.StartTime) {
		t.Errorf("DTSTART = %v, want %v", start, event.StartTime)
	}
}

func TestEventToICSAllDay(t *testing.T) {
	event := &Event{
		UID:       "uid-2",
		Summary:   "holiday",
		StartTime: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		AllDay:    true,
	}

	cal := eventToICS(event)

	parsed, err := parseCalendarObject(&caldav.CalendarObject{Path: "/c/uid-2.ics", Data: cal})
	if err != nil {
		t.Fatalf("parseCalendarObject: %v", err)
	}
	if !parsed.AllDay {
		t.Error("all-day flag lost in round trip")
	}
	if parsed.UID != "uid-2" || parsed.Summary != "holiday" {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
	if parsed.Href != "/c/uid-2.ics" {
		t.Errorf("Href = %q", parsed.Href)
	}
}

func TestParseCalendarObjectRejectsMissingUID(t *testing.T) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//test//EN")
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropSummary, "anonymous")
	cal.Children = append(cal.Children, vevent.Component)

	if _, err := parseCalendarObject(&caldav.CalendarObject{Path: "/c/x.ics", Data: cal}); err == nil {
		t.Error("expected error for event without UID")
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		collection string
		name       string
		want       string
	}{
		{"/calendars/p", "a.ics", "/calendars/p/a.ics"},
		{"/calendars/p/", "a.ics", "/calendars/p/a.ics"},
	}
	for _, tt := range tests {
		if got := joinPath(tt.collection, tt.name); got != tt.want {
			t.Errorf("joinPath(%q, %q) = %q, want %q", tt.collection, tt.name, got, tt.want)
		}
	}
}

// One client is shared between HTTP handlers and the mirror goroutine,
// so the lazy connection cache must be safe under concurrent first use.
// Run with -race to cover the synchronization.
func TestConnectConcurrent(t *testing.T) {
	c := NewClient("https://caldav.example.com", "user@example.com", "app-password")

	const workers = 8
	conns := make([]*caldav.Client, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i], errs[i] = c.connect()
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("connect %d: %v", i, errs[i])
		}
		if conns[i] == nil {
			t.Fatalf("connect %d returned nil client", i)
		}
		if conns[i] != conns[0] {
			t.Errorf("connect %d returned a different client than connect 0", i)
		}
	}
}

func TestGenerateUIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		uid := generateUID()
		if seen[uid] {
			t.Fatalf("duplicate UID generated: %s", uid)
		}
		seen[uid] = true
	}
}

func TestEnabled(t *testing.T) {
	if NewClient("", "", "").Enabled() {
		t.Error("client without credentials reported enabled")
	}
	if !NewClient("", "user@example.com", "app-password").Enabled() {
		t.Error("client with credentials reported disabled")
	}
}
