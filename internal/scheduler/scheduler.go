package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/yiyu/yiyusite/config"
	"github.com/yiyu/yiyusite/internal/service"
)

// Scheduler runs the calendar mirror on a cron spec so the schedule
// list keeps tracking the external calendar without manual syncs.
type Scheduler struct {
	cron   *cron.Cron
	cfg    *config.Config
	mirror *service.MirrorService
}

func New(cfg *config.Config, mirror *service.MirrorService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:   c,
		cfg:    cfg,
		mirror: mirror,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.MirrorCron, s.runMirror); err != nil {
		return fmt.Errorf("add mirror job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, mirror: %s)", s.cfg.Timezone, s.cfg.MirrorCron)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) runMirror() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SyncTimeout)
	defer cancel()

	result, err := s.mirror.Run(ctx)
	if err != nil {
		log.Printf("Calendar mirror failed: %v", err)
		return
	}
	log.Printf("Synced %d calendar reminders (removed %d stale entries)", result.Synced, result.Removed)
}
