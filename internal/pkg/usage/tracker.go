package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/metrics"
)

// ErrNegativeUsage is returned when a usage delta would decrease a counter.
var ErrNegativeUsage = errors.New("usage deltas must not be negative")

var hundred = decimal.NewFromInt(100)

// Tracker accumulates per-client monthly usage.
type Tracker struct {
	clients repository.ClientRepository
	now     func() time.Time
}

// NewTracker creates a tracker backed by clients.
func NewTracker(clients repository.ClientRepository) *Tracker {
	return &Tracker{clients: clients, now: time.Now}
}

// RecordUsage adds one payment's volume and transaction count to the client's
// current month. The increment happens in the database, not in memory.
func (t *Tracker) RecordUsage(ctx context.Context, clientID uint, volume decimal.Decimal, transactions int) error {
	if volume.IsNegative() || transactions < 0 {
		return ErrNegativeUsage
	}
	if err := t.clients.IncrementUsage(clientID, volume, transactions); err != nil {
		return fmt.Errorf("record usage for client %d: %w", clientID, err)
	}
	metrics.PaymentsRecorded.Add(float64(transactions))
	metrics.PaymentVolume.Add(volume.InexactFloat64())
	log.Debugf("[Usage] Client %d +%s volume, +%d transactions", clientID, volume.String(), transactions)
	return nil
}

// ResetMonthlyUsage removes the counters held in c from the stored totals and
// stamps LastUsageReset. Usage recorded after c was loaded stays in the new month.
// It does not check eligibility; see Resetter for the guarded batch.
func (t *Tracker) ResetMonthlyUsage(ctx context.Context, c *models.Client) error {
	at := t.now()
	if err := t.clients.ResetUsage(c.ID, c.CurrentMonthVolume, c.CurrentMonthTransactions, at); err != nil {
		return fmt.Errorf("reset usage for client %d: %w", c.ID, err)
	}
	c.CurrentMonthVolume = decimal.Zero
	c.CurrentMonthTransactions = 0
	c.LastUsageReset = &at
	return nil
}

// VolumeUtilization returns 100 * volume / cap, or zero without a finite positive cap.
func VolumeUtilization(c *models.Client) decimal.Decimal {
	if c == nil || !c.Package.HasVolumeCap() || !c.Package.MaxVolumePerMonth.IsPositive() {
		return decimal.Zero
	}
	return c.CurrentMonthVolume.Mul(hundred).Div(*c.Package.MaxVolumePerMonth)
}

// VolumeUtilizationPercent is VolumeUtilization as a float.
func VolumeUtilizationPercent(c *models.Client) float64 {
	return VolumeUtilization(c).InexactFloat64()
}

// IsExceedingVolumeLimits reports whether usage is strictly above a finite volume cap.
func IsExceedingVolumeLimits(c *models.Client) bool {
	if c == nil || !c.Package.HasVolumeCap() {
		return false
	}
	return c.CurrentMonthVolume.GreaterThan(*c.Package.MaxVolumePerMonth)
}

// TransactionUtilizationPercent returns 100 * transactions / cap, or zero without a finite positive cap.
func TransactionUtilizationPercent(c *models.Client) float64 {
	if c == nil || !c.Package.HasTransactionCap() || *c.Package.MaxTransactionsPerMonth <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(c.CurrentMonthTransactions)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(*c.Package.MaxTransactionsPerMonth))).
		InexactFloat64()
}

// IsExceedingTransactionLimits reports whether transactions are strictly above a finite cap.
func IsExceedingTransactionLimits(c *models.Client) bool {
	if c == nil || !c.Package.HasTransactionCap() {
		return false
	}
	return c.CurrentMonthTransactions > *c.Package.MaxTransactionsPerMonth
}

// Summary is the usage view returned by the client API.
type Summary struct {
	ClientID               uint             `json:"client_id"`
	PackageSlug            string           `json:"package_slug"`
	Volume                 decimal.Decimal  `json:"volume"`
	VolumeCap              *decimal.Decimal `json:"volume_cap"`
	VolumeUtilization      float64          `json:"volume_utilization_percent"`
	VolumeExceeded         bool             `json:"volume_exceeded"`
	Transactions           int              `json:"transactions"`
	TransactionCap         *int             `json:"transaction_cap"`
	TransactionUtilization float64          `json:"transaction_utilization_percent"`
	TransactionsExceeded   bool             `json:"transactions_exceeded"`
	LastUsageReset         *time.Time       `json:"last_usage_reset,omitempty"`
}

// SummaryFor builds a Summary for c.
func SummaryFor(c *models.Client) Summary {
	s := Summary{
		ClientID:               c.ID,
		Volume:                 c.CurrentMonthVolume,
		VolumeUtilization:      VolumeUtilization(c).Round(2).InexactFloat64(),
		VolumeExceeded:         IsExceedingVolumeLimits(c),
		Transactions:           c.CurrentMonthTransactions,
		TransactionUtilization: TransactionUtilizationPercent(c),
		TransactionsExceeded:   IsExceedingTransactionLimits(c),
		LastUsageReset:         c.LastUsageReset,
	}
	if c.HasPackage() {
		s.PackageSlug = c.Package.Slug
		s.VolumeCap = c.Package.MaxVolumePerMonth
		s.TransactionCap = c.Package.MaxTransactionsPerMonth
	}
	return s
}
