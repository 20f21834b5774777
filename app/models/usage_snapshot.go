package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageSnapshot keeps a client's counters as they were right before a monthly reset.
type UsageSnapshot struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ClientID     uint            `gorm:"not null;index:ux_usage_snapshots_client_month,unique,priority:1" json:"client_id"`
	BillingMonth string          `gorm:"type:char(7);not null;index:ux_usage_snapshots_client_month,unique,priority:2" json:"billing_month"`
	PackageSlug  string          `gorm:"type:varchar(50);default:''" json:"package_slug"`
	Volume       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"volume"`
	Transactions int             `gorm:"not null;default:0" json:"transactions"`
	ArchivedAt   time.Time       `gorm:"autoCreateTime" json:"archived_at"`
}
