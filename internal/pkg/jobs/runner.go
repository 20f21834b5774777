package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/alerts"
	"github.com/cryptogate/cryptogate/internal/pkg/archive"
	"github.com/cryptogate/cryptogate/internal/pkg/billing"
	"github.com/cryptogate/cryptogate/internal/pkg/cache"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
	"github.com/cryptogate/cryptogate/internal/pkg/mail"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

// Lock keys for batch jobs.
const (
	LockResetMonthlyUsage = "jobs:lock:reset-monthly-usage"
	LockCheckUsageAlerts  = "jobs:lock:check-usage-alerts"
	LockSyncClientStatus  = "jobs:lock:sync-client-status"
)

// ErrAlreadyRunning is returned when another process holds the job's lock.
var ErrAlreadyRunning = errors.New("job is already running")

// Runner is the entry point shared by the CLI, the cron binary and admin
// endpoints. It keeps no state between calls.
type Runner struct {
	resetter *usage.Resetter
	alerts   *alerts.Engine
	billing  *billing.Service
	rdb      *redis.Client
	lockTTL  time.Duration
}

// NewRunner wires a runner from its parts. rdb may be nil to run without locks.
func NewRunner(resetter *usage.Resetter, engine *alerts.Engine, svc *billing.Service, rdb *redis.Client, lockTTL time.Duration) *Runner {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &Runner{resetter: resetter, alerts: engine, billing: svc, rdb: rdb, lockTTL: lockTTL}
}

// Build creates a Runner with the production dependencies for cfg.
func Build(ctx context.Context, cfg config.Config, db *gorm.DB, rdb *redis.Client) (*Runner, error) {
	repos := repository.NewRepositories(db)

	exporter, err := archive.NewS3Exporter(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	var exp archive.Exporter
	if exporter != nil {
		exp = exporter
	}
	resetter := usage.NewResetter(repos.Client, archive.NewArchiver(repos.UsageSnapshot, exp))

	sender, err := mail.NewSender(cfg.Mail)
	if err != nil {
		return nil, err
	}
	engine, err := alerts.NewEngine(repos.Client, repos.UsageAlert, sender, cfg.Alerts)
	if err != nil {
		return nil, err
	}

	return NewRunner(resetter, engine, billing.NewServiceFromDB(db), rdb, cfg.Jobs.LockTTL), nil
}

// Alerts returns the alert engine used by the runner.
func (r *Runner) Alerts() *alerts.Engine {
	return r.alerts
}

func (r *Runner) withLock(ctx context.Context, key string, fn func() error) error {
	if r.rdb == nil {
		return fn()
	}
	lock, err := cache.AcquireLock(ctx, r.rdb, key, r.lockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return fmt.Errorf("%w: %s", ErrAlreadyRunning, key)
		}
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Warnf("[Jobs] Failed to release %s: %v", key, err)
		}
	}()
	return fn()
}

// ResetMonthlyUsage archives and zeroes the counters of eligible clients.
// Dry runs do not take the lock.
func (r *Runner) ResetMonthlyUsage(ctx context.Context, opts usage.ResetOptions) (*usage.ResetReport, error) {
	var report *usage.ResetReport
	run := func() error {
		var err error
		report, err = r.resetter.Run(ctx, opts)
		return err
	}
	if opts.DryRun {
		return report, run()
	}
	err := r.withLock(ctx, LockResetMonthlyUsage, run)
	return report, err
}

// CheckClientUsage runs the alert check for one client.
func (r *Runner) CheckClientUsage(ctx context.Context, clientID uint) (bool, error) {
	return r.alerts.CheckClientUsageByID(ctx, clientID)
}

// CheckUsageAlerts runs the alert check for every active flat-rate client.
func (r *Runner) CheckUsageAlerts(ctx context.Context) (*alerts.Report, error) {
	var report *alerts.Report
	err := r.withLock(ctx, LockCheckUsageAlerts, func() error {
		var err error
		report, err = r.alerts.CheckAllClients(ctx)
		return err
	})
	return report, err
}

// TestUsageAlert sends an unrecorded alert at threshold.
func (r *Runner) TestUsageAlert(ctx context.Context, clientID uint, threshold int) error {
	return r.alerts.SendTestAlert(ctx, clientID, threshold)
}

// SyncClientStatuses repairs denormalized client statuses.
func (r *Runner) SyncClientStatuses(ctx context.Context) (int, error) {
	var updated int
	err := r.withLock(ctx, LockSyncClientStatus, func() error {
		var err error
		updated, err = r.billing.SyncClientStatuses(ctx)
		return err
	})
	return updated, err
}
