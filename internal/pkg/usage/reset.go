package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/metrics"
)

// ErrClientNotFound is returned when a reset targets a missing client.
var ErrClientNotFound = errors.New("client not found")

// Per-client reset outcomes.
const (
	ResultReset      = "reset"
	ResultWouldReset = "would_reset"
	ResultSkipped    = "skipped"
	ResultFailed     = "failed"
)

// Archiver stores counters before they are zeroed.
type Archiver interface {
	Archive(ctx context.Context, snapshot *models.UsageSnapshot) error
}

// ResetOptions controls a monthly reset run. ClientID 0 targets every active flat-rate client.
type ResetOptions struct {
	DryRun   bool
	Force    bool
	ClientID uint
}

// ResetResult is the outcome for one client.
type ResetResult struct {
	ClientID     uint
	Email        string
	PackageSlug  string
	BillingMonth string
	Volume       string
	Transactions int
	Outcome      string
	Reason       string
	Err          error
}

// ResetReport aggregates a reset run.
type ResetReport struct {
	DryRun    bool
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
	Results   []ResetResult
}

// Resetter runs the guarded monthly reset.
type Resetter struct {
	clients  repository.ClientRepository
	tracker  *Tracker
	archiver Archiver
	now      func() time.Time
}

// NewResetter creates a resetter. archiver may be nil to skip snapshots.
func NewResetter(clients repository.ClientRepository, archiver Archiver) *Resetter {
	return &Resetter{
		clients:  clients,
		tracker:  NewTracker(clients),
		archiver: archiver,
		now:      time.Now,
	}
}

// IsEligibleForReset reports whether c may be reset at now: flat-rate package,
// active, and either forced, never reset, or last reset before this month began.
func IsEligibleForReset(c *models.Client, now time.Time, force bool) bool {
	eligible, _ := eligibility(c, now, force)
	return eligible
}

func eligibility(c *models.Client, now time.Time, force bool) (bool, string) {
	switch {
	case c == nil:
		return false, "missing client"
	case !c.Package.IsFlatRate():
		return false, "not on a flat-rate package"
	case !c.IsActive:
		return false, "client inactive"
	case force:
		return true, ""
	case c.LastUsageReset == nil:
		return true, ""
	case c.LastUsageReset.Before(models.StartOfMonth(now)):
		return true, ""
	default:
		return false, "already reset this month"
	}
}

// SnapshotFor captures c's counters. The billing month is the month the
// counters were accumulated in: the month of the last reset, or of client creation.
func SnapshotFor(c *models.Client) *models.UsageSnapshot {
	since := c.CreatedAt
	if c.LastUsageReset != nil {
		since = *c.LastUsageReset
	}
	s := &models.UsageSnapshot{
		ClientID:     c.ID,
		BillingMonth: models.BillingMonth(since),
		Volume:       c.CurrentMonthVolume,
		Transactions: c.CurrentMonthTransactions,
	}
	if c.HasPackage() {
		s.PackageSlug = c.Package.Slug
	}
	return s
}

// Run resets every eligible target. A failing client is recorded and the batch continues.
func (r *Resetter) Run(ctx context.Context, opts ResetOptions) (*ResetReport, error) {
	targets, err := r.targets(opts)
	if err != nil {
		return nil, err
	}

	now := r.now()
	report := &ResetReport{DryRun: opts.DryRun}
	for i := range targets {
		c := &targets[i]
		res := ResetResult{
			ClientID:     c.ID,
			Email:        c.Email,
			BillingMonth: models.BillingMonth(now),
			Volume:       c.CurrentMonthVolume.StringFixed(2),
			Transactions: c.CurrentMonthTransactions,
		}
		if c.HasPackage() {
			res.PackageSlug = c.Package.Slug
		}

		ok, reason := eligibility(c, now, opts.Force)
		if !ok {
			res.Outcome = ResultSkipped
			res.Reason = reason
			report.Skipped++
			report.Results = append(report.Results, res)
			metrics.UsageResets.WithLabelValues(metrics.ResetSkipped).Inc()
			continue
		}

		report.Attempted++
		if opts.DryRun {
			res.Outcome = ResultWouldReset
			report.Succeeded++
			report.Results = append(report.Results, res)
			metrics.UsageResets.WithLabelValues(metrics.ResetDryRun).Inc()
			continue
		}

		if err := r.resetOne(ctx, c); err != nil {
			log.Errorf("[UsageReset] Client %d failed: %v", c.ID, err)
			res.Outcome = ResultFailed
			res.Err = err
			report.Failed++
			metrics.UsageResets.WithLabelValues(metrics.ResetFailed).Inc()
		} else {
			res.Outcome = ResultReset
			report.Succeeded++
			metrics.UsageResets.WithLabelValues(metrics.ResetSucceeded).Inc()
		}
		report.Results = append(report.Results, res)
	}

	log.Infof("[UsageReset] Done (dry_run=%t): attempted=%d succeeded=%d failed=%d skipped=%d",
		opts.DryRun, report.Attempted, report.Succeeded, report.Failed, report.Skipped)
	return report, nil
}

func (r *Resetter) targets(opts ResetOptions) ([]models.Client, error) {
	if opts.ClientID == 0 {
		return r.clients.ListActiveFlatRate()
	}
	c, err := r.clients.GetByID(opts.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrClientNotFound, opts.ClientID)
		}
		return nil, err
	}
	return []models.Client{*c}, nil
}

func (r *Resetter) resetOne(ctx context.Context, c *models.Client) error {
	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, SnapshotFor(c)); err != nil {
			return fmt.Errorf("archive usage: %w", err)
		}
	}
	return r.tracker.ResetMonthlyUsage(ctx, c)
}
