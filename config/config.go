package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort   string
	DatabasePath string
	SeedPath     string
	StaticDir    string

	CalDAVURL        string
	CalDAVEmail      string
	CalDAVPassword   string
	CalendarURLHint  string
	CalendarNameHint string

	Timezone    *time.Location
	SyncDays    int
	MirrorCron  string
	SyncTimeout time.Duration
}

func Load() (*Config, error) {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8090"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/site.db"
	}

	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "./data/schedule.json"
	}

	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./dist"
	}

	caldavURL := os.Getenv("CALDAV_URL")
	if caldavURL == "" {
		caldavURL = "https://caldav.icloud.com"
	}

	calendarName := os.Getenv("ICLOUD_CALENDAR_NAME")
	if calendarName == "" {
		calendarName = "个人"
	}

	tzName := os.Getenv("YIYU_CALENDAR_TZ")
	if tzName == "" {
		tzName = "Europe/Berlin"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid YIYU_CALENDAR_TZ: %w", err)
	}

	syncDays := 30
	if v := os.Getenv("YIYU_CAL_SYNC_DAYS"); v != "" {
		syncDays, err = strconv.Atoi(v)
		if err != nil || syncDays <= 0 {
			return nil, fmt.Errorf("YIYU_CAL_SYNC_DAYS must be a positive number")
		}
	}

	mirrorCron := os.Getenv("CAL_SYNC_CRON")
	if mirrorCron == "" {
		mirrorCron = "*/30 * * * *"
	}

	syncTimeout := 30 * time.Second
	if v := os.Getenv("CAL_SYNC_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("CAL_SYNC_TIMEOUT_SECONDS must be a positive number")
		}
		syncTimeout = time.Duration(secs) * time.Second
	}

	return &Config{
		ServerPort:       port,
		DatabasePath:     dbPath,
		SeedPath:         seedPath,
		StaticDir:        staticDir,
		CalDAVURL:        caldavURL,
		CalDAVEmail:      os.Getenv("ICLOUD_EMAIL"),
		CalDAVPassword:   os.Getenv("ICLOUD_APP_PASSWORD"),
		CalendarURLHint:  os.Getenv("ICLOUD_CALENDAR_URL"),
		CalendarNameHint: calendarName,
		Timezone:         tz,
		SyncDays:         syncDays,
		MirrorCron:       mirrorCron,
		SyncTimeout:      syncTimeout,
	}, nil
}
