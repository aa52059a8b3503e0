// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yiyu/yiyusite/internal/clients/caldav"
)

// PushCall records one Push invocation for assertions.
type PushCall struct {
	Event *caldav.Event
	Prior *caldav.Linkage
}

// FakeSync is an in-memory implementation of service.CalendarSync.
type FakeSync struct {
	mu sync.Mutex

	Disabled bool

	// Error injection for testing
	PushErr     error
	RemoveErr   error
	UpcomingErr error

	// NextLinkage overrides the linkage Push would derive itself.
	NextLinkage *caldav.Linkage

	// Events is what Upcoming returns.
	Events []caldav.Event

	Pushes  []PushCall
	Removes []*caldav.Linkage
}

// NewFakeSync creates an enabled FakeSync.
func NewFakeSync() *FakeSync {
	return &FakeSync{}
}

func (f *FakeSync) Enabled() bool {
	return !f.Disabled
}

// Push implements service.CalendarSync. Without an injected linkage it
// derives one the way the real client does: reuse the prior identifiers
// when present, mint fresh ones otherwise.
func (f *FakeSync) Push(ctx context.Context, event *caldav.Event, prior *caldav.Linkage) (*caldav.Linkage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Pushes = append(f.Pushes, PushCall{Event: event, Prior: prior})

	if f.PushErr != nil {
		return nil, f.PushErr
	}
	if f.NextLinkage != nil {
		return f.NextLinkage, nil
	}

	if prior != nil && prior.EventHref != "" {
		return prior, nil
	}

	uid := event.UID
	if uid == "" {
		uid = fmt.Sprintf("fake-%d", len(f.Pushes))
	}
	return &caldav.Linkage{
		UID:         uid,
		CalendarURL: "/calendars/fake/",
		EventHref:   "/calendars/fake/" + uid + ".ics",
	}, nil
}

func (f *FakeSync) Remove(ctx context.Context, linkage *caldav.Linkage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Removes = append(f.Removes, linkage)
	return f.RemoveErr
}

func (f *FakeSync) Upcoming(ctx context.Context, from, to time.Time) ([]caldav.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.UpcomingErr != nil {
		return nil, f.UpcomingErr
	}
	return f.Events, nil
}

// PushCount returns how many pushes were recorded.
func (f *FakeSync) PushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Pushes)
}
