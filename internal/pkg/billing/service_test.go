package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/internal/pkg/testutil"
)

func flatRateInput(slug, price, maxVolume string) PackageInput {
	in := PackageInput{
		Slug:         slug,
		Name:         "Package " + slug,
		BillingMode:  models.BillingModeFlatRate,
		MonthlyPrice: dec(price),
	}
	if maxVolume != "" {
		in.MaxVolumePerMonth = decPtr(maxVolume)
	}
	return in
}

func TestCreatePackageEnforcesMarginFloor(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewServiceFromDB(db)
	ctx := context.Background()

	pkg, err := svc.CreatePackage(ctx, flatRateInput("business_flat_rate", "499", "35000"))
	require.NoError(t, err)
	assert.NotZero(t, pkg.ID)
	assert.Equal(t, models.PackageStatusActive, pkg.Status)
	assert.True(t, pkg.MinMarginPercent.Equal(models.DefaultMinMarginPercent))

	_, err = svc.CreatePackage(ctx, flatRateInput("cheap_flat_rate", "500", "50000"))
	assert.ErrorIs(t, err, ErrMarginBelowFloor)

	var count int64
	require.NoError(t, db.Model(&models.Package{}).Where("slug = ?", "cheap_flat_rate").Count(&count).Error)
	assert.Zero(t, count, "rejected package must not be persisted")

	_, err = svc.CreatePackage(ctx, flatRateInput("unlimited_flat_rate", "1", ""))
	assert.NoError(t, err, "unlimited volume is exempt from the margin floor")
}

func TestCreatePackageExplicitZeroFloor(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewServiceFromDB(db)

	in := flatRateInput("promo_flat_rate", "100", "50000")
	in.MinMarginPercent = decPtr("0")
	pkg, err := svc.CreatePackage(context.Background(), in)
	require.NoError(t, err, "0.2% margin passes a zero floor")

	stored, err := svc.GetPackage(context.Background(), pkg.ID)
	require.NoError(t, err)
	assert.True(t, stored.MinMarginPercent.IsZero(), "got %s", stored.MinMarginPercent)
}

func TestCreatePackageValidation(t *testing.T) {
	svc := NewServiceFromDB(testutil.NewTestDB(t))
	ctx := context.Background()

	_, err := svc.CreatePackage(ctx, PackageInput{Slug: "x1", Name: "X", BillingMode: "barter"})
	assert.ErrorIs(t, err, ErrInvalidPackage)

	_, err = svc.CreatePackage(ctx, PackageInput{Slug: "", Name: "X", BillingMode: models.BillingModeCommission})
	assert.ErrorIs(t, err, ErrInvalidPackage)

	_, err = svc.CreatePackage(ctx, PackageInput{Slug: "neg", Name: "X", BillingMode: models.BillingModeCommission, CommissionRate: dec("-1")})
	assert.ErrorIs(t, err, ErrInvalidPackage)

	_, err = svc.CreatePackage(ctx, flatRateInput("zero_cap", "100", "0"))
	assert.ErrorIs(t, err, ErrInvalidVolumeCap)

	_, err = svc.CreatePackage(ctx, PackageInput{Slug: "Starter_Commission ", Name: "Starter", BillingMode: "COMMISSION", CommissionRate: dec("1.5")})
	require.NoError(t, err)
	_, err = svc.CreatePackage(ctx, PackageInput{Slug: "starter_commission", Name: "Starter 2", BillingMode: models.BillingModeCommission})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestUpdatePackage(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewServiceFromDB(db)
	ctx := context.Background()

	pkg, err := svc.CreatePackage(ctx, flatRateInput("growth_flat_rate", "499", "35000"))
	require.NoError(t, err)
	client := testutil.Client(t, db, "a@example.com", pkg)

	_, err = svc.UpdatePackage(ctx, pkg.ID, flatRateInput("growth_flat_rate", "499", "50000"))
	assert.ErrorIs(t, err, ErrMarginBelowFloor)

	stored, err := svc.GetPackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.True(t, stored.MaxVolumePerMonth.Equal(dec("35000")), "failed update must not persist")

	updated, err := svc.UpdatePackage(ctx, pkg.ID, flatRateInput("growth_v2_flat_rate", "699", "50000"))
	require.NoError(t, err)
	assert.Equal(t, "growth_v2_flat_rate", updated.Slug)

	var reloaded models.Client
	require.NoError(t, db.First(&reloaded, client.ID).Error)
	assert.Equal(t, "growth_v2_flat_rate", reloaded.Status, "slug change re-syncs client status")

	_, err = svc.UpdatePackage(ctx, 9999, flatRateInput("x_flat", "10", ""))
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestDeactivatePackageKeepsAssignments(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewServiceFromDB(db)
	ctx := context.Background()

	pkg := testutil.FlatRatePackage(t, db, "starter_flat_rate", "199", "10000")
	client := testutil.Client(t, db, "b@example.com", pkg)

	deactivated, err := svc.DeactivatePackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PackageStatusInactive, deactivated.Status)

	active, err := svc.ListPackages(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := svc.ListPackages(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	var reloaded models.Client
	require.NoError(t, db.First(&reloaded, client.ID).Error)
	require.NotNil(t, reloaded.PackageID)
	assert.Equal(t, pkg.ID, *reloaded.PackageID)

	other := testutil.Client(t, db, "c@example.com", nil)
	_, err = svc.AssignPackage(ctx, other.ID, &pkg.ID)
	assert.ErrorIs(t, err, ErrPackageInactive)
}

func TestAssignPackageKeepsStatusInSync(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewServiceFromDB(db)
	ctx := context.Background()

	pkg := testutil.FlatRatePackage(t, db, "business_flat_rate", "999", "70000")
	client := testutil.Client(t, db, "d@example.com", nil)

	assigned, err := svc.AssignPackage(ctx, client.ID, &pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, "business_flat_rate", assigned.Status)

	var reloaded models.Client
	require.NoError(t, db.Preload("Package").First(&reloaded, client.ID).Error)
	assert.Equal(t, "business_flat_rate", reloaded.Status)
	require.NotNil(t, reloaded.Package)
	assert.Equal(t, pkg.ID, reloaded.Package.ID)

	cleared, err := svc.AssignPackage(ctx, client.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoPackage, cleared.Status)
	assert.Nil(t, cleared.Package)

	reloaded = models.Client{}
	require.NoError(t, db.First(&reloaded, client.ID).Error)
	assert.Nil(t, reloaded.PackageID)
	assert.Equal(t, models.StatusNoPackage, reloaded.Status)

	_, err = svc.AssignPackage(ctx, 4242, nil)
	assert.ErrorIs(t, err, ErrClientNotFound)
	missing := uint(4242)
	_, err = svc.AssignPackage(ctx, client.ID, &missing)
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestSyncClientStatusesRepairsDrift(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewServiceFromDB(db)
	ctx := context.Background()

	pkg := testutil.FlatRatePackage(t, db, "growth_flat_rate", "499", "35000")
	inSync := testutil.Client(t, db, "e@example.com", pkg)
	drifted := testutil.Client(t, db, "f@example.com", pkg)
	orphan := testutil.Client(t, db, "g@example.com", nil)

	require.NoError(t, db.Model(&models.Client{}).Where("id = ?", drifted.ID).Update("status", "starter_flat_rate").Error)
	require.NoError(t, db.Model(&models.Client{}).Where("id = ?", orphan.ID).Update("status", "growth_flat_rate").Error)

	updated, err := svc.SyncClientStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	for id, want := range map[uint]string{inSync.ID: "growth_flat_rate", drifted.ID: "growth_flat_rate", orphan.ID: models.StatusNoPackage} {
		var c models.Client
		require.NoError(t, db.First(&c, id).Error)
		assert.Equal(t, want, c.Status)
	}

	updated, err = svc.SyncClientStatuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestSetOverrides(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewServiceFromDB(db)
	client := testutil.Client(t, db, "h@example.com", nil)

	got, err := svc.SetOverrides(context.Background(), client.ID, []string{"api_access", " api_access", "", "max_coins:25"})
	require.NoError(t, err)
	assert.Equal(t, []string{"api_access", "max_coins:25"}, got.Overrides())

	var reloaded models.Client
	require.NoError(t, db.First(&reloaded, client.ID).Error)
	assert.Equal(t, []string{"api_access", "max_coins:25"}, reloaded.Overrides())
}

func TestServiceMarginStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewServiceFromDB(db)

	pkg := testutil.FlatRatePackage(t, db, "business_flat_rate", "999", "70000")
	client := testutil.Client(t, db, "i@example.com", pkg)

	st, err := svc.MarginStatus(context.Background(), client.ID)
	require.NoError(t, err)
	assert.True(t, st.Applicable)
	assert.True(t, st.IsValid)

	_, err = svc.MarginStatus(context.Background(), 777)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestRecordWebhookEventIsIdempotent(t *testing.T) {
	svc := NewServiceFromDB(testutil.NewTestDB(t))
	ctx := context.Background()
	in := WebhookEventInput{Provider: "Gateway", ProviderEventID: "evt_1", EventType: "payment.status_changed", PayloadJSON: `{"id":"evt_1"}`, SignatureValid: true}

	created, stored, err := svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "gateway", stored.Provider)

	created, again, err := svc.RecordWebhookEvent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, again.ID)

	require.NoError(t, svc.MarkWebhookProcessed(ctx, stored.ID, nil))
	assert.Error(t, svc.MarkWebhookProcessed(ctx, 0, nil))

	created, hashed, err := svc.RecordWebhookEvent(ctx, WebhookEventInput{Provider: "gateway", PayloadJSON: `{"x":1}`})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, hashed.ProviderEventID, "hash:")
}
