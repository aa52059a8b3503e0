package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yiyu/yiyusite/internal/clients/caldav"
	"github.com/yiyu/yiyusite/internal/domain"
	"github.com/yiyu/yiyusite/internal/storage"
)

// MirrorService pulls upcoming external calendar events into the
// schedule store as cal- prefixed records and prunes the ones that
// disappeared remotely. API-created records are never touched.
type MirrorService struct {
	storage *storage.Storage
	sync    CalendarSync
	tz      *time.Location
	days    int
}

func NewMirrorService(s *storage.Storage, sync CalendarSync, tz *time.Location, days int) *MirrorService {
	if tz == nil {
		tz = time.UTC
	}
	if days <= 0 {
		days = 30
	}
	return &MirrorService{storage: s, sync: sync, tz: tz, days: days}
}

// MirrorResult reports what one mirror run did.
type MirrorResult struct {
	Synced  int
	Removed int
}

// Run fetches the next N days of events and reconciles the store
// against them. Running twice against the same remote state is a no-op
// the second time.
func (m *MirrorService) Run(ctx context.Context) (*MirrorResult, error) {
	if m.sync == nil || !m.sync.Enabled() {
		return nil, fmt.Errorf("calendar sync not configured")
	}

	now := time.Now()
	events, err := m.sync.Upcoming(ctx, now, now.AddDate(0, 0, m.days))
	if err != nil {
		return nil, fmt.Errorf("fetch upcoming events: %w", err)
	}

	seen := make(map[string]bool)
	var items []*domain.ScheduleItem
	for i := range events {
		item := m.eventToItem(&events[i])
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}

	if err := m.storage.UpsertMirrored(items); err != nil {
		return nil, err
	}

	existing, err := m.storage.ListMirroredIDs()
	if err != nil {
		return nil, err
	}

	removed := 0
	for _, id := range existing {
		if seen[id] {
			continue
		}
		ok, err := m.storage.Delete(id)
		if err != nil {
			return nil, fmt.Errorf("prune mirrored %s: %w", id, err)
		}
		if ok {
			removed++
		}
	}

	return &MirrorResult{Synced: len(items), Removed: removed}, nil
}

// eventToItem maps a remote event onto a schedule record with a
// deterministic id, so repeated runs update in place.
func (m *MirrorService) eventToItem(ev *caldav.Event) *domain.ScheduleItem {
	var date, timeValue string
	if ev.AllDay {
		date = ev.StartTime.Format("2006-01-02")
	} else {
		local := ev.StartTime.In(m.tz)
		date = local.Format("2006-01-02")
		timeValue = local.Format("15:04")
	}

	return &domain.ScheduleItem{
		ID:             mirrorID(ev.UID, ev.StartTime, ev.AllDay),
		Date:           date,
		Title:          ev.Summary,
		Note:           mirrorNote(ev.Location, ev.Description),
		Time:           timeValue,
		CalUID:         ev.UID,
		CalCalendarURL: ev.CalendarURL,
		CalEventHref:   ev.Href,
	}
}

// mirrorID derives a stable record id from the event UID and its start
// instant. All-day events pin the stamp to midnight UTC.
func mirrorID(uid string, start time.Time, allDay bool) string {
	var stamp string
	if allDay {
		stamp = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC).Format("20060102T150405Z")
	} else {
		stamp = start.UTC().Format("20060102T150405Z")
	}
	safe := strings.NewReplacer("/", "_", `\`, "_").Replace(uid)
	return domain.MirrorIDPrefix + safe + "-" + stamp
}

// mirrorNote composes the record note from the event location and the
// first line of its description.
func mirrorNote(location, description string) string {
	var parts []string
	if v := strings.TrimSpace(location); v != "" {
		parts = append(parts, v)
	}
	if description != "" {
		first := strings.TrimSpace(strings.SplitN(description, "\n", 2)[0])
		if first != "" {
			parts = append(parts, first)
		}
	}
	return strings.Join(parts, " · ")
}
