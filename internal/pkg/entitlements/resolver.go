package entitlements

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cryptogate/cryptogate/app/models"
)

// Unlimited is returned for limits that have no cap.
const Unlimited = -1

const (
	DefaultCoinLimit        = 15
	DefaultMonthlyTxLimit   = Unlimited
	DefaultAPIRateLimit     = 100
	DefaultReportingCadence = "none"
)

const unlimitedValue = "unlimited"

// Limits bundles the computed parameter values for a client.
type Limits struct {
	MaxCoins         int    `json:"max_coins"`
	MonthlyTxLimit   int    `json:"monthly_tx_limit"`
	APIRateLimit     int    `json:"api_rate_limit"`
	ReportingCadence string `json:"reporting_cadence"`
}

// Resolver computes a client's effective features from its package (via the
// catalog) and its manual overrides. Package features are always searched
// before overrides.
type Resolver struct {
	catalog *Catalog
}

// NewResolver creates a resolver over catalog.
func NewResolver(catalog *Catalog) *Resolver {
	if catalog == nil {
		catalog = defaultCatalog
	}
	return &Resolver{catalog: catalog}
}

var defaultResolver = NewResolver(defaultCatalog)

// DefaultResolver returns the resolver over the built-in catalog.
func DefaultResolver() *Resolver {
	return defaultResolver
}

// Catalog returns the resolver's catalog.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

func (r *Resolver) packageFeatures(c *models.Client) []Feature {
	if !c.HasPackage() {
		return nil
	}
	return r.catalog.Features(c.Package.Slug)
}

func overrideFeatures(c *models.Client) []Feature {
	return parseFeatures(c.Overrides())
}

func matches(f Feature, name string) bool {
	return f.Name == name || f.Token() == name
}

// HasFeature reports whether name is granted verbatim or as a parameterized
// token name:value, by either the package or the overrides.
func (r *Resolver) HasFeature(c *models.Client, name string) bool {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return false
	}
	for _, f := range r.packageFeatures(c) {
		if matches(f, name) {
			return true
		}
	}
	for _, f := range overrideFeatures(c) {
		if matches(f, name) {
			return true
		}
	}
	return false
}

// FeatureValue returns the value of the first parameterized token named base,
// searching package features before overrides. def is returned when none exists.
func (r *Resolver) FeatureValue(c *models.Client, base, def string) string {
	if c == nil {
		return def
	}
	for _, f := range r.packageFeatures(c) {
		if f.Parameterized && f.Name == base {
			return f.Value
		}
	}
	for _, f := range overrideFeatures(c) {
		if f.Parameterized && f.Name == base {
			return f.Value
		}
	}
	return def
}

func (r *Resolver) intValue(c *models.Client, base string, def int) int {
	raw := r.FeatureValue(c, base, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Warnf("[Entitlements] Malformed %s value %q for client %d, using default %d", base, raw, clientID(c), def)
		return def
	}
	return n
}

// CoinLimit returns how many coins the client may enable.
func (r *Resolver) CoinLimit(c *models.Client) int {
	return r.intValue(c, FeatureMaxCoins, DefaultCoinLimit)
}

// MonthlyTxLimit returns the monthly transaction limit, or Unlimited.
func (r *Resolver) MonthlyTxLimit(c *models.Client) int {
	raw := r.FeatureValue(c, FeatureMonthlyTxLimit, "")
	if strings.EqualFold(raw, unlimitedValue) {
		return Unlimited
	}
	return r.intValue(c, FeatureMonthlyTxLimit, DefaultMonthlyTxLimit)
}

// APIRateLimit returns the allowed API requests per minute.
func (r *Resolver) APIRateLimit(c *models.Client) int {
	return r.intValue(c, FeatureAPIRateLimit, DefaultAPIRateLimit)
}

// ReportingCadence returns how often usage reports are emailed.
func (r *Resolver) ReportingCadence(c *models.Client) string {
	v := strings.ToLower(r.FeatureValue(c, FeatureEmailReports, DefaultReportingCadence))
	switch v {
	case "daily", "weekly", "monthly":
		return v
	default:
		return DefaultReportingCadence
	}
}

// Limits returns all computed parameter values for c.
func (r *Resolver) Limits(c *models.Client) Limits {
	return Limits{
		MaxCoins:         r.CoinLimit(c),
		MonthlyTxLimit:   r.MonthlyTxLimit(c),
		APIRateLimit:     r.APIRateLimit(c),
		ReportingCadence: r.ReportingCadence(c),
	}
}

// IsUnlimited reports whether a limit value carries the Unlimited sentinel.
func IsUnlimited(limit int) bool {
	return limit == Unlimited
}

func clientID(c *models.Client) uint {
	if c == nil {
		return 0
	}
	return c.ID
}
