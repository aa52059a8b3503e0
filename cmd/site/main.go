package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yiyu/yiyusite/config"
	"github.com/yiyu/yiyusite/internal/clients/caldav"
	"github.com/yiyu/yiyusite/internal/domain"
	"github.com/yiyu/yiyusite/internal/scheduler"
	"github.com/yiyu/yiyusite/internal/server"
	"github.com/yiyu/yiyusite/internal/service"
	"github.com/yiyu/yiyusite/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	if err := store.SeedFromFile(cfg.SeedPath); err != nil {
		log.Printf("Seed migration skipped: %v", err)
	}

	calClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVEmail, cfg.CalDAVPassword)
	calClient.SetCalendarHints(cfg.CalendarURLHint, cfg.CalendarNameHint)
	if !calClient.Enabled() {
		log.Println("CalDAV credentials missing, calendar sync disabled")
	}

	scheduleSvc := service.NewScheduleService(store, calClient, cfg.Timezone, cfg.SyncTimeout)
	mirrorSvc := service.NewMirrorService(store, calClient, cfg.Timezone, cfg.SyncDays)

	srv := server.New(scheduleSvc, domain.DefaultProfile(), cfg.StaticDir)
	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: srv.Handler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sched *scheduler.Scheduler
	if calClient.Enabled() {
		sched = scheduler.New(cfg, mirrorSvc)
		go func() {
			if err := sched.Start(ctx); err != nil {
				log.Printf("Scheduler error: %v", err)
			}
		}()

		// Catch up with the calendar right away instead of waiting for
		// the first cron tick.
		go func() {
			runCtx, runCancel := context.WithTimeout(ctx, cfg.SyncTimeout)
			defer runCancel()
			if result, err := mirrorSvc.Run(runCtx); err != nil {
				log.Printf("Initial calendar mirror failed: %v", err)
			} else {
				log.Printf("Synced %d calendar reminders (removed %d stale entries)", result.Synced, result.Removed)
			}
		}()
	}

	go func() {
		log.Printf("Personal site running on http://localhost:%s", cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}

	log.Println("Personal site stopped")
}
