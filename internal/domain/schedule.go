package domain

import "strings"

// MirrorIDPrefix marks schedule records mirrored from the external
// calendar rather than created through the API.
const MirrorIDPrefix = "cal-"

// ScheduleItem is one reminder entry on the site. The three Cal* fields
// link it to an event in the external CalDAV calendar; they stay empty
// until a sync succeeds.
type ScheduleItem struct {
	ID             string `json:"id"`
	Date           string `json:"date"` // YYYY-MM-DD
	Title          string `json:"title"`
	Note           string `json:"note"`
	Time           string `json:"time,omitempty"` // free text, usually HH:MM
	CalUID         string `json:"cal_uid,omitempty"`
	CalCalendarURL string `json:"cal_calendar_url,omitempty"`
	CalEventHref   string `json:"cal_event_href,omitempty"`
}

// Synced reports whether the item is linked to an external calendar
// event. The event href alone is authoritative for update and delete
// targeting.
func (i *ScheduleItem) Synced() bool {
	return i.CalEventHref != ""
}

// Mirrored reports whether the item was pulled in from the external
// calendar by the mirror job.
func (i *ScheduleItem) Mirrored() bool {
	return strings.HasPrefix(i.ID, MirrorIDPrefix)
}

// ItemInput is a partial update: nil leaves a field unchanged, a
// non-nil pointer overwrites it.
type ItemInput struct {
	Date  *string `json:"date"`
	Title *string `json:"title"`
	Note  *string `json:"note"`
	Time  *string `json:"time"`
}

// SeedItem is one entry of the legacy schedule.json seed file.
type SeedItem struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Title string `json:"title"`
	Note  string `json:"note"`
}

// Valid reports whether the seed entry carries the fields required for
// migration into the store.
func (s *SeedItem) Valid() bool {
	return s.ID != "" && s.Date != "" && s.Title != ""
}
