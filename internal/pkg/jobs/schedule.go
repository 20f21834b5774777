package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/cryptogate/cryptogate/internal/pkg/config"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

const jobTimeout = 30 * time.Minute

// Register adds the recurring batch jobs to c using the schedules in cfg.
// Each run takes the job's Redis lock, so several cron hosts can share a schedule.
func Register(c *cron.Cron, r *Runner, cfg config.JobsConfig) error {
	entries := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) error
	}{
		{"check-usage-alerts", cfg.AlertSchedule, func(ctx context.Context) error {
			report, err := r.CheckUsageAlerts(ctx)
			if err != nil {
				return err
			}
			log.Infof("[Cron] Usage alerts: checked=%d sent=%d failed=%d", report.Checked, report.Sent, report.Failed)
			for _, f := range report.Failures {
				log.Warnf("[Cron] Usage alert failed for client %d: %v", f.ClientID, f.Err)
			}
			return nil
		}},
		{"reset-monthly-usage", cfg.ResetSchedule, func(ctx context.Context) error {
			report, err := r.ResetMonthlyUsage(ctx, usage.ResetOptions{})
			if err != nil {
				return err
			}
			log.Infof("[Cron] Monthly reset: attempted=%d succeeded=%d failed=%d skipped=%d",
				report.Attempted, report.Succeeded, report.Failed, report.Skipped)
			return nil
		}},
		{"sync-client-status", cfg.StatusSchedule, func(ctx context.Context) error {
			updated, err := r.SyncClientStatuses(ctx)
			if err != nil {
				return err
			}
			log.Infof("[Cron] Client status sync: updated=%d", updated)
			return nil
		}},
	}

	for _, e := range entries {
		e := e
		if e.schedule == "" {
			log.Infof("[Cron] %s disabled (empty schedule)", e.name)
			continue
		}
		_, err := c.AddFunc(e.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			log.Infof("[Cron] Starting %s", e.name)
			if err := e.run(ctx); err != nil {
				if errors.Is(err, ErrAlreadyRunning) {
					log.Infof("[Cron] Skipping %s: %v", e.name, err)
					return
				}
				log.Errorf("[Cron] %s failed: %v", e.name, err)
				return
			}
			log.Infof("[Cron] Finished %s", e.name)
		})
		if err != nil {
			return fmt.Errorf("schedule %s %q: %w", e.name, e.schedule, err)
		}
	}
	return nil
}
