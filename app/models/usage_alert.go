package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingMonthLayout formats the billing month key stored on alerts and snapshots.
const BillingMonthLayout = "2006-01"

// UsageAlert records that a usage threshold notification was sent to a client
// for a billing month. The unique index is the idempotency guard: at most one
// alert per client, threshold and month.
type UsageAlert struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ClientID     uint            `gorm:"not null;index:ux_usage_alerts_client_threshold_month,unique,priority:1" json:"client_id"`
	Threshold    int             `gorm:"not null;index:ux_usage_alerts_client_threshold_month,unique,priority:2" json:"threshold"`
	BillingMonth string          `gorm:"type:char(7);not null;index:ux_usage_alerts_client_threshold_month,unique,priority:3;index" json:"billing_month"`
	UsagePercent decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"usage_percent"`
	Severity     string          `gorm:"type:varchar(20);not null" json:"severity"`
	SentTo       string          `gorm:"type:varchar(200);default:''" json:"sent_to"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// MaxUsagePercent is the largest value the usage_percent column holds.
var MaxUsagePercent = decimal.RequireFromString("9999999999.99")

// RecordedUsagePercent rounds pct to the stored precision and caps it at MaxUsagePercent.
func RecordedUsagePercent(pct decimal.Decimal) decimal.Decimal {
	pct = pct.Round(2)
	if pct.GreaterThan(MaxUsagePercent) {
		return MaxUsagePercent
	}
	return pct
}

// BillingMonth returns the billing month key for t.
func BillingMonth(t time.Time) string {
	return t.Format(BillingMonthLayout)
}

// StartOfMonth returns midnight on the first day of t's calendar month, in t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
