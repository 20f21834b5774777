package entitlements

import (
	"slices"
	"strings"

	"github.com/cryptogate/cryptogate/app/models"
)

// Parameterized feature names that feed computed limits. Any other
// parameterized token is kept for display only.
const (
	FeatureMaxCoins       = "max_coins"
	FeatureMonthlyTxLimit = "monthly_tx_limit"
	FeatureAPIRateLimit   = "api_rate_limit"
	FeatureEmailReports   = "email_reports"
)

// Boolean feature tokens used across the catalog.
const (
	FeatureWalletManagement   = "wallet_management"
	FeaturePaymentProcessing  = "payment_processing"
	FeatureBasicDashboard     = "basic_dashboard"
	FeatureTransactionHistory = "transaction_history"
	FeatureAPIAccess          = "api_access"
	FeatureWebhooks           = "webhooks"
	FeatureAdvancedAnalytics  = "advanced_analytics"
	FeaturePrioritySupport    = "priority_support"
	FeatureMultiUser          = "multi_user"
	FeatureCustomBranding     = "custom_branding"
	FeatureDedicatedManager   = "dedicated_manager"
	FeatureWhiteLabel         = "white_label"
)

var limitFeatures = []string{FeatureMaxCoins, FeatureMonthlyTxLimit, FeatureAPIRateLimit, FeatureEmailReports}

// IsLimitFeature reports whether name is one of the allow-listed parameterized names.
func IsLimitFeature(name string) bool {
	return slices.Contains(limitFeatures, name)
}

// Feature is a parsed feature token. "max_coins:15" parses to
// {Name: "max_coins", Value: "15", Parameterized: true}.
type Feature struct {
	Name          string
	Value         string
	Parameterized bool
}

// ParseFeature splits a token on its first colon.
func ParseFeature(token string) Feature {
	token = strings.TrimSpace(token)
	name, value, found := strings.Cut(token, ":")
	if !found {
		return Feature{Name: token}
	}
	return Feature{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value), Parameterized: true}
}

// Token renders the feature back to its string form.
func (f Feature) Token() string {
	if f.Parameterized {
		return f.Name + ":" + f.Value
	}
	return f.Name
}

// AffectsLimits reports whether the feature is a recognized limit parameter.
func (f Feature) AffectsLimits() bool {
	return f.Parameterized && IsLimitFeature(f.Name)
}

func parseFeatures(tokens []string) []Feature {
	out := make([]Feature, 0, len(tokens))
	for _, t := range tokens {
		if strings.TrimSpace(t) == "" {
			continue
		}
		out = append(out, ParseFeature(t))
	}
	return out
}

// TierDefinition declares one catalog entry.
type TierDefinition struct {
	Slug        string
	DisplayName string
	BillingMode string
	Rank        int
	Tokens      []string
}

// Tier is a catalog entry with its tokens parsed.
type Tier struct {
	Slug        string
	DisplayName string
	BillingMode string
	Rank        int
	tokens      []string
	features    []Feature
}

// Tokens returns a copy of the tier's raw tokens in declaration order.
func (t Tier) Tokens() []string {
	return slices.Clone(t.tokens)
}

// Features returns a copy of the tier's parsed features in declaration order.
func (t Tier) Features() []Feature {
	return slices.Clone(t.features)
}

// Catalog maps package slugs to their features. It is built once and read-only afterwards.
type Catalog struct {
	tiers map[string]Tier
	order []string
}

// NewCatalog parses the given definitions. Later definitions with the same slug replace earlier ones.
func NewCatalog(defs ...TierDefinition) *Catalog {
	c := &Catalog{tiers: make(map[string]Tier, len(defs))}
	for _, d := range defs {
		slug := normalizeSlug(d.Slug)
		if slug == "" {
			continue
		}
		if _, exists := c.tiers[slug]; !exists {
			c.order = append(c.order, slug)
		}
		c.tiers[slug] = Tier{
			Slug:        slug,
			DisplayName: d.DisplayName,
			BillingMode: d.BillingMode,
			Rank:        d.Rank,
			tokens:      slices.Clone(d.Tokens),
			features:    parseFeatures(d.Tokens),
		}
	}
	return c
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// Tier looks up a catalog entry.
func (c *Catalog) Tier(slug string) (Tier, bool) {
	if c == nil {
		return Tier{}, false
	}
	t, ok := c.tiers[normalizeSlug(slug)]
	return t, ok
}

// PackageFeatures returns the tokens for slug, or an empty list for unknown slugs.
func (c *Catalog) PackageFeatures(slug string) []string {
	t, ok := c.Tier(slug)
	if !ok {
		return []string{}
	}
	return t.Tokens()
}

// Features returns the parsed features for slug, or nil for unknown slugs.
func (c *Catalog) Features(slug string) []Feature {
	t, ok := c.Tier(slug)
	if !ok {
		return nil
	}
	return t.features
}

// Slugs returns all slugs in declaration order.
func (c *Catalog) Slugs() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.order)
}

// NextTier returns the lowest-ranked tier above slug within the same billing mode.
func (c *Catalog) NextTier(slug string) (Tier, bool) {
	current, ok := c.Tier(slug)
	if !ok {
		return Tier{}, false
	}
	var best Tier
	found := false
	for _, s := range c.order {
		t := c.tiers[s]
		if t.BillingMode != current.BillingMode || t.Rank <= current.Rank {
			continue
		}
		if !found || t.Rank < best.Rank {
			best = t
			found = true
		}
	}
	return best, found
}

// Rank returns the tier rank for slug, or -1 for unknown slugs.
func (c *Catalog) Rank(slug string) int {
	t, ok := c.Tier(slug)
	if !ok {
		return -1
	}
	return t.Rank
}

var defaultCatalog = NewCatalog(
	TierDefinition{
		Slug:        "starter_commission",
		DisplayName: "Starter (Commission)",
		BillingMode: models.BillingModeCommission,
		Rank:        0,
		Tokens: []string{
			FeatureWalletManagement, FeaturePaymentProcessing, FeatureBasicDashboard, FeatureTransactionHistory,
			"max_coins:5", "monthly_tx_limit:500", "api_rate_limit:60", "email_reports:monthly",
		},
	},
	TierDefinition{
		Slug:        "business_commission",
		DisplayName: "Business (Commission)",
		BillingMode: models.BillingModeCommission,
		Rank:        1,
		Tokens: []string{
			FeatureWalletManagement, FeaturePaymentProcessing, FeatureBasicDashboard, FeatureTransactionHistory,
			FeatureAPIAccess, FeatureWebhooks, FeatureAdvancedAnalytics,
			"max_coins:15", "monthly_tx_limit:5000", "api_rate_limit:300", "email_reports:weekly",
		},
	},
	TierDefinition{
		Slug:        "enterprise_commission",
		DisplayName: "Enterprise (Commission)",
		BillingMode: models.BillingModeCommission,
		Rank:        2,
		Tokens: []string{
			FeatureWalletManagement, FeaturePaymentProcessing, FeatureBasicDashboard, FeatureTransactionHistory,
			FeatureAPIAccess, FeatureWebhooks, FeatureAdvancedAnalytics, FeaturePrioritySupport,
			FeatureMultiUser, FeatureCustomBranding, FeatureDedicatedManager,
			"max_coins:50", "monthly_tx_limit:unlimited", "api_rate_limit:1000", "email_reports:daily",
		},
	},
	TierDefinition{
		Slug:        "starter_flat_rate",
		DisplayName: "Starter Flat Rate",
		BillingMode: models.BillingModeFlatRate,
		Rank:        0,
		Tokens: []string{
			FeatureWalletManagement, FeaturePaymentProcessing, FeatureBasicDashboard, FeatureTransactionHistory,
			"max_coins:10", "monthly_tx_limit:1000", "api_rate_limit:100", "email_reports:monthly",
		},
	},
	TierDefinition{
		Slug:        "growth_flat_rate",
		DisplayName: "Growth Flat Rate",
		BillingMode: models.BillingModeFlatRate,
		Rank:        1,
		Tokens: []string{
			FeatureWalletManagement, FeaturePaymentProcessing, FeatureBasicDashboard, FeatureTransactionHistory,
			FeatureAPIAccess, FeatureWebhooks,
			"max_coins:15", "monthly_tx_limit:3000", "api_rate_limit:200", "email_reports:weekly",
		},
	},
	TierDefinition{
		Slug:        "business_flat_rate",
		DisplayName: "Business Flat Rate",
		BillingMode: models.BillingModeFlatRate,
		Rank:        2,
		Tokens: []string{
			FeatureWalletManagement, FeaturePaymentProcessing, FeatureBasicDashboard, FeatureTransactionHistory,
			FeatureAPIAccess, FeatureWebhooks, FeatureAdvancedAnalytics, FeaturePrioritySupport, FeatureMultiUser,
			"max_coins:25", "monthly_tx_limit:10000", "api_rate_limit:500", "email_reports:weekly",
		},
	},
	TierDefinition{
		Slug:        "enterprise_flat_rate",
		DisplayName: "Enterprise Flat Rate",
		BillingMode: models.BillingModeFlatRate,
		Rank:        3,
		Tokens: []string{
			FeatureWalletManagement, FeaturePaymentProcessing, FeatureBasicDashboard, FeatureTransactionHistory,
			FeatureAPIAccess, FeatureWebhooks, FeatureAdvancedAnalytics, FeaturePrioritySupport, FeatureMultiUser,
			FeatureCustomBranding, FeatureDedicatedManager, FeatureWhiteLabel,
			"max_coins:100", "monthly_tx_limit:unlimited", "api_rate_limit:2000", "email_reports:daily",
		},
	},
)

// DefaultCatalog returns the built-in package catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// PackageFeatures returns the built-in catalog tokens for slug, or an empty list for unknown slugs.
func PackageFeatures(slug string) []string {
	return defaultCatalog.PackageFeatures(slug)
}
