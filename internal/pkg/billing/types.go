package billing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cryptogate/cryptogate/app/models"
)

// PackageInput is the admin-supplied shape for creating or updating a package.
// A nil MinMarginPercent keeps the default floor.
type PackageInput struct {
	Slug                    string           `json:"slug"`
	Name                    string           `json:"name"`
	Description             string           `json:"description"`
	BillingMode             string           `json:"billing_mode"`
	CommissionRate          decimal.Decimal  `json:"commission_rate"`
	MonthlyPrice            decimal.Decimal  `json:"monthly_price"`
	AnnualPrice             decimal.Decimal  `json:"annual_price"`
	MaxVolumePerMonth       *decimal.Decimal `json:"max_volume_per_month"`
	MaxTransactionsPerMonth *int             `json:"max_transactions_per_month"`
	MaxAPICallsPerMonth     *int             `json:"max_api_calls_per_month"`
	MinMarginPercent        *decimal.Decimal `json:"min_margin_percent"`
	SortOrder               int              `json:"sort_order"`
}

func (in PackageInput) apply(pkg *models.Package) {
	pkg.Slug = normalizeSlug(in.Slug)
	pkg.Name = strings.TrimSpace(in.Name)
	pkg.Description = strings.TrimSpace(in.Description)
	pkg.BillingMode = normalizeBillingMode(in.BillingMode)
	pkg.CommissionRate = in.CommissionRate
	pkg.MonthlyPrice = in.MonthlyPrice
	pkg.AnnualPrice = in.AnnualPrice
	pkg.MaxVolumePerMonth = in.MaxVolumePerMonth
	pkg.MaxTransactionsPerMonth = in.MaxTransactionsPerMonth
	pkg.MaxAPICallsPerMonth = in.MaxAPICallsPerMonth
	pkg.MinMarginPercent = models.DefaultMinMarginPercent
	if in.MinMarginPercent != nil {
		pkg.MinMarginPercent = *in.MinMarginPercent
	}
	pkg.SortOrder = in.SortOrder
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	ClientID        uint
	PayloadJSON     string
	SignatureValid  bool
}
