package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// StatusNoPackage is the denormalized client status used when no package is assigned.
const StatusNoPackage = "no_package"

// Client is a merchant using the gateway. Package is optional; a nil Package
// means the client has no subscription and therefore no package features.
type Client struct {
	ID                       uint                        `gorm:"primaryKey" json:"id"`
	Name                     string                      `gorm:"type:varchar(150);not null" json:"name"`
	Email                    string                      `gorm:"type:varchar(200);not null;uniqueIndex" json:"email"`
	CompanyName              string                      `gorm:"type:varchar(200);default:''" json:"company_name"`
	IsActive                 bool                        `gorm:"default:true;index" json:"is_active"`
	Status                   string                      `gorm:"type:varchar(50);not null;default:'no_package';index" json:"status"`
	PackageID                *uint                       `gorm:"index" json:"package_id"`
	Package                  *Package                    `gorm:"foreignKey:PackageID" json:"package,omitempty"`
	FeaturesOverride         datatypes.JSONSlice[string] `gorm:"type:json" json:"features_override"`
	CurrentMonthVolume       decimal.Decimal             `gorm:"type:decimal(14,2);not null;default:0" json:"current_month_volume"`
	CurrentMonthTransactions int                         `gorm:"not null;default:0" json:"current_month_transactions"`
	LastUsageReset           *time.Time                  `gorm:"type:timestamp;default:null" json:"last_usage_reset,omitempty"`
	APIKeyHash               string                      `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix             string                      `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	CreatedAt                time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasPackage reports whether a package is assigned and loaded.
func (c *Client) HasPackage() bool {
	return c != nil && c.Package != nil
}

// Overrides returns the manually granted feature tokens.
func (c *Client) Overrides() []string {
	if c == nil {
		return nil
	}
	return []string(c.FeaturesOverride)
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "cg_"

// IssueAPIKey generates a new API key, stores its hash on the struct and returns the raw secret.
// Callers must persist the client afterwards.
func (c *Client) IssueAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	raw := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(b))
	c.APIKeyHash = HashAPIKey(raw)
	c.APIKeyPrefix = raw[:12]
	return raw, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
