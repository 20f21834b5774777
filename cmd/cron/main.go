package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/cryptogate/cryptogate/internal/pkg/cache"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
	"github.com/cryptogate/cryptogate/internal/pkg/database"
	"github.com/cryptogate/cryptogate/internal/pkg/jobs"
)

func main() {
	cfg := config.MustLoad()

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("[Cron] %v", err)
	}
	cache.SetupCache(cfg.Cache)

	runner, err := jobs.Build(context.Background(), cfg, db, cache.GetClient())
	if err != nil {
		log.Fatalf("[Cron] Failed to build job runner: %v", err)
	}

	scheduler := cron.New()
	if err := jobs.Register(scheduler, runner, cfg.Jobs); err != nil {
		log.Fatalf("[Cron] %v", err)
	}
	scheduler.Start()
	log.Infof("[Cron] Started: alerts %q, reset %q, status sync %q",
		cfg.Jobs.AlertSchedule, cfg.Jobs.ResetSchedule, cfg.Jobs.StatusSchedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Cron] Shutting down")
	ctx := scheduler.Stop()
	select {
	case <-ctx.Done():
		log.Info("[Cron] Running jobs finished")
	case <-time.After(5 * time.Minute):
		log.Warn("[Cron] Timed out waiting for running jobs")
	}
}
