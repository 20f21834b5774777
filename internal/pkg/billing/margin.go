package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cryptogate/cryptogate/app/models"
)

var hundred = decimal.NewFromInt(100)

// MarginResult is the outcome of a margin check. CalculatedMargin is the
// monthly fee as a percentage of the capped volume and stays zero when the
// volume is unlimited.
type MarginResult struct {
	IsValid          bool            `json:"is_valid"`
	CalculatedMargin decimal.Decimal `json:"calculated_margin"`
	Unlimited        bool            `json:"unlimited"`
}

// ValidateMargin checks 100 * monthlyPrice / maxVolume >= minMargin.
// A nil maxVolume means unlimited volume and always passes. A cap of zero or
// less can never satisfy a margin and fails.
func ValidateMargin(monthlyPrice decimal.Decimal, maxVolume *decimal.Decimal, minMargin decimal.Decimal) MarginResult {
	if maxVolume == nil {
		return MarginResult{IsValid: true, Unlimited: true}
	}
	if !maxVolume.IsPositive() {
		return MarginResult{IsValid: false}
	}
	margin := monthlyPrice.Mul(hundred).Div(*maxVolume)
	return MarginResult{
		IsValid:          margin.GreaterThanOrEqual(minMargin),
		CalculatedMargin: margin,
	}
}

// minMargin returns the floor stored on pkg. Zero is a valid floor; the
// default is applied when the package is created from admin input.
func minMargin(pkg *models.Package) decimal.Decimal {
	if pkg == nil {
		return models.DefaultMinMarginPercent
	}
	return pkg.MinMarginPercent
}

// CheckPackageMargin enforces the margin floor on flat-rate packages.
// Commission packages are exempt because their revenue scales with volume.
func CheckPackageMargin(pkg *models.Package) (MarginResult, error) {
	if !pkg.IsFlatRate() {
		return MarginResult{IsValid: true, Unlimited: !pkg.HasVolumeCap()}, nil
	}
	if pkg.MaxVolumePerMonth != nil && !pkg.MaxVolumePerMonth.IsPositive() {
		return MarginResult{}, ErrInvalidVolumeCap
	}
	floor := minMargin(pkg)
	res := ValidateMargin(pkg.MonthlyPrice, pkg.MaxVolumePerMonth, floor)
	if !res.IsValid {
		return res, fmt.Errorf("%w: %s%% < %s%%", ErrMarginBelowFloor, res.CalculatedMargin.StringFixed(3), floor.StringFixed(2))
	}
	return res, nil
}

// MarginStatus reports a client's package margin for admins.
// Applicable is false when the client has no flat-rate package.
type MarginStatus struct {
	ClientID         uint            `json:"client_id"`
	PackageSlug      string          `json:"package_slug"`
	Applicable       bool            `json:"applicable"`
	Unlimited        bool            `json:"unlimited"`
	IsValid          bool            `json:"is_valid"`
	CalculatedMargin decimal.Decimal `json:"calculated_margin"`
	MinMargin        decimal.Decimal `json:"min_margin"`
	Headroom         decimal.Decimal `json:"headroom"`
}

// MarginStatusFor computes the margin status of c's current package.
func MarginStatusFor(c *models.Client) MarginStatus {
	out := MarginStatus{}
	if c == nil {
		return out
	}
	out.ClientID = c.ID
	if !c.HasPackage() {
		return out
	}
	pkg := c.Package
	out.PackageSlug = pkg.Slug
	if !pkg.IsFlatRate() {
		return out
	}
	out.Applicable = true
	out.MinMargin = minMargin(pkg)
	res := ValidateMargin(pkg.MonthlyPrice, pkg.MaxVolumePerMonth, out.MinMargin)
	out.Unlimited = res.Unlimited
	out.IsValid = res.IsValid
	out.CalculatedMargin = res.CalculatedMargin
	if !res.Unlimited {
		out.Headroom = res.CalculatedMargin.Sub(out.MinMargin)
	}
	return out
}
