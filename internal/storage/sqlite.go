package storage

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yiyu/yiyusite/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS schedule (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			title TEXT NOT NULL,
			note TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_date ON schedule(date)`,
		// Optional display time
		`ALTER TABLE schedule ADD COLUMN time TEXT DEFAULT ''`,
		// External calendar linkage
		`ALTER TABLE schedule ADD COLUMN cal_uid TEXT DEFAULT ''`,
		`ALTER TABLE schedule ADD COLUMN cal_calendar_url TEXT DEFAULT ''`,
		`ALTER TABLE schedule ADD COLUMN cal_event_href TEXT DEFAULT ''`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

const itemColumns = `id, date, title, note, COALESCE(time, ''), COALESCE(cal_uid, ''), COALESCE(cal_calendar_url, ''), COALESCE(cal_event_href, '')`

// List returns all schedule items sorted by (date, id). The id tiebreak
// keeps same-date entries in a deterministic order.
func (s *Storage) List() ([]*domain.ScheduleItem, error) {
	rows, err := s.db.Query(`SELECT ` + itemColumns + ` FROM schedule ORDER BY date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*domain.ScheduleItem{}
	for rows.Next() {
		i := &domain.ScheduleItem{}
		if err := rows.Scan(&i.ID, &i.Date, &i.Title, &i.Note, &i.Time, &i.CalUID, &i.CalCalendarURL, &i.CalEventHref); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (s *Storage) Get(id string) (*domain.ScheduleItem, error) {
	i := &domain.ScheduleItem{}
	err := s.db.QueryRow(`SELECT `+itemColumns+` FROM schedule WHERE id = ?`, id).
		Scan(&i.ID, &i.Date, &i.Title, &i.Note, &i.Time, &i.CalUID, &i.CalCalendarURL, &i.CalEventHref)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Storage) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM schedule`).Scan(&n)
	return n, err
}

// Create inserts a new item with a freshly generated id. String fields
// are trimmed before insert.
func (s *Storage) Create(date, title, note, timeStr string) (*domain.ScheduleItem, error) {
	item := &domain.ScheduleItem{
		ID:    newID(),
		Date:  strings.TrimSpace(date),
		Title: strings.TrimSpace(title),
		Note:  strings.TrimSpace(note),
		Time:  strings.TrimSpace(timeStr),
	}

	_, err := s.db.Exec(
		`INSERT INTO schedule (id, date, title, note, time) VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.Date, item.Title, item.Note, item.Time,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Update applies a partial update and returns the stored result, or
// (nil, nil) when the id is unknown. A provided date or title that trims
// to empty is ignored so those fields never end up blank.
func (s *Storage) Update(id string, in domain.ItemInput) (*domain.ScheduleItem, error) {
	current, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	if in.Date != nil {
		if v := strings.TrimSpace(*in.Date); v != "" {
			current.Date = v
		}
	}
	if in.Title != nil {
		if v := strings.TrimSpace(*in.Title); v != "" {
			current.Title = v
		}
	}
	if in.Note != nil {
		current.Note = strings.TrimSpace(*in.Note)
	}
	if in.Time != nil {
		current.Time = strings.TrimSpace(*in.Time)
	}

	_, err = s.db.Exec(
		`UPDATE schedule SET date = ?, title = ?, note = ?, time = ? WHERE id = ?`,
		current.Date, current.Title, current.Note, current.Time, id,
	)
	if err != nil {
		return nil, err
	}
	return current, nil
}

// SetLinkage stores the external calendar identifiers for an item,
// touching nothing else. Returns (nil, nil) when the id is unknown.
func (s *Storage) SetLinkage(id, calUID, calendarURL, eventHref string) (*domain.ScheduleItem, error) {
	res, err := s.db.Exec(
		`UPDATE schedule SET cal_uid = ?, cal_calendar_url = ?, cal_event_href = ? WHERE id = ?`,
		calUID, calendarURL, eventHref, id,
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(id)
}

// Delete removes an item and reports whether a row actually went away.
func (s *Storage) Delete(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM schedule WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SeedFromFile performs the one-time migration of the legacy
// schedule.json dataset. It only runs against an empty store; INSERT OR
// IGNORE makes a repeat run against a seeded store a no-op, so recovery
// after an emptied database is intentional rather than a bug.
func (s *Storage) SeedFromFile(path string) error {
	n, err := s.Count()
	if err != nil {
		return fmt.Errorf("count schedule: %w", err)
	}
	if n > 0 {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read seed file: %w", err)
	}

	var seeds []domain.SeedItem
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for _, seed := range seeds {
		if !seed.Valid() {
			continue
		}
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO schedule (id, date, title, note) VALUES (?, ?, ?, ?)`,
			seed.ID, seed.Date, seed.Title, seed.Note,
		)
		if err != nil {
			return fmt.Errorf("insert seed %s: %w", seed.ID, err)
		}
	}
	return nil
}

// UpsertMirrored replaces mirrored records wholesale, linkage included.
func (s *Storage) UpsertMirrored(items []*domain.ScheduleItem) error {
	for _, i := range items {
		_, err := s.db.Exec(
			`INSERT OR REPLACE INTO schedule (id, date, title, note, time, cal_uid, cal_calendar_url, cal_event_href)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i.ID, i.Date, i.Title, i.Note, i.Time, i.CalUID, i.CalCalendarURL, i.CalEventHref,
		)
		if err != nil {
			return fmt.Errorf("upsert mirrored %s: %w", i.ID, err)
		}
	}
	return nil
}

// ListMirroredIDs returns the ids of all records the mirror job owns.
func (s *Storage) ListMirroredIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM schedule WHERE id LIKE ?`, domain.MirrorIDPrefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// newID generates a schedule id from the current time plus a short
// random suffix. Collisions would need two ids in the same millisecond
// with the same three random bytes.
func newID() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("s%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
