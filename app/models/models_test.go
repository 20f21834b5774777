package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageValidate(t *testing.T) {
	valid := &Package{Slug: "business", Name: "Business", BillingMode: BillingModeFlatRate, Status: PackageStatusActive}
	assert.NoError(t, valid.Validate())

	badMode := &Package{Slug: "business", Name: "Business", BillingMode: "monthly", Status: PackageStatusActive}
	assert.Error(t, badMode.Validate())

	noSlug := &Package{Name: "Business", BillingMode: BillingModeCommission, Status: PackageStatusActive}
	assert.Error(t, noSlug.Validate())
}

func TestPackagePredicates(t *testing.T) {
	var none *Package
	assert.False(t, none.IsFlatRate())
	assert.False(t, none.IsActive())
	assert.False(t, none.HasVolumeCap())

	limit := decimal.NewFromInt(70000)
	calls := 1000
	p := &Package{BillingMode: BillingModeFlatRate, Status: PackageStatusActive, MaxVolumePerMonth: &limit, MaxAPICallsPerMonth: &calls}
	assert.True(t, p.IsFlatRate())
	assert.False(t, p.IsCommission())
	assert.True(t, p.IsActive())
	assert.True(t, p.HasVolumeCap())
	assert.False(t, p.HasTransactionCap())
	assert.True(t, p.HasAPICallCap())
}

func TestClientIssueAPIKey(t *testing.T) {
	c := &Client{}
	raw, err := c.IssueAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "cg_"))
	assert.Equal(t, HashAPIKey(raw), c.APIKeyHash)
	assert.Len(t, c.APIKeyHash, 64)
	assert.Equal(t, raw[:12], c.APIKeyPrefix)
	assert.Equal(t, c.APIKeyHash, HashAPIKey("  "+raw+"\n"))

	again, err := c.IssueAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, raw, again)
}

func TestClientOverrides(t *testing.T) {
	var none *Client
	assert.Nil(t, none.Overrides())
	assert.False(t, none.HasPackage())

	c := &Client{FeaturesOverride: []string{"priority_support"}}
	assert.Equal(t, []string{"priority_support"}, c.Overrides())
}

func TestBillingMonth(t *testing.T) {
	ts := time.Date(2026, time.October, 19, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "2026-10", BillingMonth(ts))
	assert.Equal(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), StartOfMonth(ts))
}

func TestRecordedUsagePercent(t *testing.T) {
	assert.Equal(t, "95.12", RecordedUsagePercent(decimal.RequireFromString("95.1249")).StringFixed(2))
	assert.True(t, RecordedUsagePercent(decimal.RequireFromString("100000000000000")).Equal(MaxUsagePercent))
}
