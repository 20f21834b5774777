package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/internal/pkg/database"
)

// NewTestDB opens an isolated in-memory SQLite database with the full schema migrated.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// FlatRatePackage stores a flat-rate package with the given volume cap.
func FlatRatePackage(t *testing.T, db *gorm.DB, slug string, price, maxVolume string) *models.Package {
	t.Helper()
	pkg := &models.Package{
		Slug:             slug,
		Name:             slug,
		BillingMode:      models.BillingModeFlatRate,
		MonthlyPrice:     decimal.RequireFromString(price),
		MinMarginPercent: models.DefaultMinMarginPercent,
		Status:           models.PackageStatusActive,
	}
	if maxVolume != "" {
		v := decimal.RequireFromString(maxVolume)
		pkg.MaxVolumePerMonth = &v
	}
	if err := db.Create(pkg).Error; err != nil {
		t.Fatalf("create package %s: %v", slug, err)
	}
	return pkg
}

// CommissionPackage stores an uncapped commission package.
func CommissionPackage(t *testing.T, db *gorm.DB, slug, rate string) *models.Package {
	t.Helper()
	pkg := &models.Package{
		Slug:             slug,
		Name:             slug,
		BillingMode:      models.BillingModeCommission,
		CommissionRate:   decimal.RequireFromString(rate),
		MinMarginPercent: models.DefaultMinMarginPercent,
		Status:           models.PackageStatusActive,
	}
	if err := db.Create(pkg).Error; err != nil {
		t.Fatalf("create package %s: %v", slug, err)
	}
	return pkg
}

// Client stores an active client on pkg (nil for no package) and returns it with Package loaded.
func Client(t *testing.T, db *gorm.DB, email string, pkg *models.Package) *models.Client {
	t.Helper()
	c := &models.Client{
		Name:     email,
		Email:    email,
		IsActive: true,
		Status:   models.StatusNoPackage,
	}
	if pkg != nil {
		c.PackageID = &pkg.ID
		c.Status = pkg.Slug
	}
	if err := db.Omit("Package").Create(c).Error; err != nil {
		t.Fatalf("create client %s: %v", email, err)
	}
	c.Package = pkg
	return c
}
