package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	BillingModeCommission = "commission"
	BillingModeFlatRate   = "flat_rate"
)

const (
	PackageStatusActive   = "active"
	PackageStatusInactive = "inactive"
)

// DefaultMinMarginPercent is the margin floor applied when a package does not set one.
var DefaultMinMarginPercent = decimal.RequireFromString("1.20")

// Package is a subscription tier. Flat-rate packages carry a fixed monthly fee
// and usage caps; commission packages bill a percentage per transaction and are
// usually uncapped. A nil cap means unlimited.
type Package struct {
	ID                      uint             `gorm:"primaryKey" json:"id"`
	Slug                    string           `gorm:"type:varchar(50);not null;uniqueIndex" json:"slug" validate:"required,min=2,max=50"`
	Name                    string           `gorm:"type:varchar(100);not null" json:"name" validate:"required,max=100"`
	Description             string           `gorm:"type:text" json:"description"`
	BillingMode             string           `gorm:"type:varchar(20);not null;index" json:"billing_mode" validate:"oneof=commission flat_rate"`
	CommissionRate          decimal.Decimal  `gorm:"type:decimal(6,4);not null;default:0" json:"commission_rate"`
	MonthlyPrice            decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"monthly_price"`
	AnnualPrice             decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"annual_price"`
	MaxVolumePerMonth       *decimal.Decimal `gorm:"type:decimal(14,2);default:null" json:"max_volume_per_month"`
	MaxTransactionsPerMonth *int             `gorm:"default:null" json:"max_transactions_per_month"`
	MaxAPICallsPerMonth     *int             `gorm:"default:null" json:"max_api_calls_per_month"`
	MinMarginPercent        decimal.Decimal  `gorm:"type:decimal(6,2);not null;default:1.20" json:"min_margin_percent"`
	SortOrder               int              `gorm:"default:0" json:"sort_order"`
	Status                  string           `gorm:"type:varchar(20);not null;default:'active';index" json:"status" validate:"oneof=active inactive"`
	CreatedAt               time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Package) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsFlatRate reports whether the package bills a fixed recurring fee.
func (p *Package) IsFlatRate() bool {
	return p != nil && p.BillingMode == BillingModeFlatRate
}

// IsCommission reports whether the package bills a percentage per transaction.
func (p *Package) IsCommission() bool {
	return p != nil && p.BillingMode == BillingModeCommission
}

// IsActive reports whether the package can be assigned to clients.
func (p *Package) IsActive() bool {
	return p != nil && p.Status == PackageStatusActive
}

// HasVolumeCap reports whether the package limits monthly volume.
func (p *Package) HasVolumeCap() bool {
	return p != nil && p.MaxVolumePerMonth != nil
}

// HasTransactionCap reports whether the package limits monthly transactions.
func (p *Package) HasTransactionCap() bool {
	return p != nil && p.MaxTransactionsPerMonth != nil
}

// HasAPICallCap reports whether the package limits monthly API calls.
func (p *Package) HasAPICallCap() bool {
	return p != nil && p.MaxAPICallsPerMonth != nil
}
