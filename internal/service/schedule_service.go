package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/yiyu/yiyusite/internal/clients/caldav"
	"github.com/yiyu/yiyusite/internal/domain"
	"github.com/yiyu/yiyusite/internal/storage"
)

// ErrMissingFields is returned by Create when date or title is blank.
var ErrMissingFields = errors.New("date and title are required")

// CalendarSync is the boundary to the external calendar. The caldav
// client implements it; tests swap in a fake. Every caller treats its
// results as optional enrichment: a failed sync never fails the local
// operation.
type CalendarSync interface {
	Enabled() bool
	Push(ctx context.Context, event *caldav.Event, prior *caldav.Linkage) (*caldav.Linkage, error)
	Remove(ctx context.Context, linkage *caldav.Linkage) error
	Upcoming(ctx context.Context, from, to time.Time) ([]caldav.Event, error)
}

// ScheduleService orders every mutation as local write first, external
// sync second. The local store is the source of truth; the calendar is
// a convenience mirror.
type ScheduleService struct {
	storage *storage.Storage
	sync    CalendarSync
	tz      *time.Location
	timeout time.Duration
}

func NewScheduleService(s *storage.Storage, sync CalendarSync, tz *time.Location, timeout time.Duration) *ScheduleService {
	if tz == nil {
		tz = time.UTC
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ScheduleService{storage: s, sync: sync, tz: tz, timeout: timeout}
}

func (s *ScheduleService) List() ([]*domain.ScheduleItem, error) {
	return s.storage.List()
}

func (s *ScheduleService) Get(id string) (*domain.ScheduleItem, error) {
	return s.storage.Get(id)
}

// Create validates, writes locally, then pushes to the calendar.
func (s *ScheduleService) Create(date, title, note, timeStr string) (*domain.ScheduleItem, error) {
	if strings.TrimSpace(date) == "" || strings.TrimSpace(title) == "" {
		return nil, ErrMissingFields
	}

	item, err := s.storage.Create(date, title, note, timeStr)
	if err != nil {
		return nil, err
	}

	return s.pushAndReconcile(item, nil), nil
}

// Update applies a partial update, then pushes. Returns (nil, nil) when
// the id is unknown. The pre-update record supplies the prior linkage so
// the push updates the existing remote event instead of creating one.
func (s *ScheduleService) Update(id string, in domain.ItemInput) (*domain.ScheduleItem, error) {
	prior, err := s.storage.Get(id)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}

	item, err := s.storage.Update(id, in)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	return s.pushAndReconcile(item, linkageOf(prior)), nil
}

// Delete removes the remote event best-effort, then deletes locally.
// The local delete proceeds no matter what the calendar said.
func (s *ScheduleService) Delete(id string) (bool, error) {
	item, err := s.storage.Get(id)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}

	if linkage := linkageOf(item); linkage != nil && s.sync != nil && s.sync.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.sync.Remove(ctx, linkage); err != nil {
			log.Printf("Warning: failed to delete calendar event for %s: %v", id, err)
		}
		cancel()
	}

	return s.storage.Delete(id)
}

// pushAndReconcile mirrors the item to the calendar and writes the
// returned linkage back into the store. Any failure leaves the local
// record as the final answer.
func (s *ScheduleService) pushAndReconcile(item *domain.ScheduleItem, prior *caldav.Linkage) *domain.ScheduleItem {
	if s.sync == nil || !s.sync.Enabled() {
		return item
	}

	event := s.buildEvent(item)
	if event == nil {
		return item
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	linkage, err := s.sync.Push(ctx, event, prior)
	if err != nil {
		log.Printf("Warning: failed to sync %s to calendar: %v", item.ID, err)
		return item
	}
	if linkage == nil {
		return item
	}

	updated, err := s.storage.SetLinkage(item.ID, linkage.UID, linkage.CalendarURL, linkage.EventHref)
	if err != nil || updated == nil {
		log.Printf("Warning: failed to store calendar linkage for %s: %v", item.ID, err)
		return item
	}
	return updated
}

// buildEvent converts a schedule item into a calendar event. A date
// without a parseable HH:MM time becomes an all-day event; a timed one
// spans an hour, matching what the old helper script produced.
func (s *ScheduleService) buildEvent(item *domain.ScheduleItem) *caldav.Event {
	day, err := time.ParseInLocation("2006-01-02", item.Date, s.tz)
	if err != nil {
		log.Printf("Warning: schedule %s has unparseable date %q, skipping sync", item.ID, item.Date)
		return nil
	}

	event := &caldav.Event{
		UID:         item.CalUID,
		Summary:     item.Title,
		Description: item.Note,
	}

	if hhmm, err := time.Parse("15:04", item.Time); err == nil {
		start := time.Date(day.Year(), day.Month(), day.Day(), hhmm.Hour(), hhmm.Minute(), 0, 0, s.tz)
		event.StartTime = start
		event.EndTime = start.Add(time.Hour)
	} else {
		event.StartTime = day
		event.EndTime = day.AddDate(0, 0, 1)
		event.AllDay = true
	}
	return event
}

func linkageOf(item *domain.ScheduleItem) *caldav.Linkage {
	if !item.Synced() && item.CalUID == "" {
		return nil
	}
	return &caldav.Linkage{
		UID:         item.CalUID,
		CalendarURL: item.CalCalendarURL,
		EventHref:   item.CalEventHref,
	}
}
