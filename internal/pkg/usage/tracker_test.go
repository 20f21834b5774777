package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/testutil"
)

func capped(volume string, transactions *int) *models.Client {
	pkg := &models.Package{Slug: "business_flat_rate", BillingMode: models.BillingModeFlatRate, MaxTransactionsPerMonth: transactions}
	if volume != "" {
		v := decimal.RequireFromString(volume)
		pkg.MaxVolumePerMonth = &v
	}
	return &models.Client{ID: 1, IsActive: true, Package: pkg}
}

func TestVolumeUtilization(t *testing.T) {
	c := capped("70000", nil)
	c.CurrentMonthVolume = decimal.RequireFromString("66500")

	assert.Equal(t, 95.0, VolumeUtilizationPercent(c))
	assert.True(t, VolumeUtilization(c).Equal(decimal.NewFromInt(95)))
	assert.False(t, IsExceedingVolumeLimits(c))
}

func TestVolumeUtilization_NoCap(t *testing.T) {
	c := capped("", nil)
	c.CurrentMonthVolume = decimal.RequireFromString("1000000")

	assert.Equal(t, 0.0, VolumeUtilizationPercent(c))
	assert.False(t, IsExceedingVolumeLimits(c))
	assert.Equal(t, 0.0, VolumeUtilizationPercent(&models.Client{}))
	assert.False(t, IsExceedingVolumeLimits(nil))
}

func TestIsExceedingVolumeLimits_Strict(t *testing.T) {
	c := capped("1000", nil)
	c.CurrentMonthVolume = decimal.RequireFromString("1000")
	assert.False(t, IsExceedingVolumeLimits(c))

	c.CurrentMonthVolume = decimal.RequireFromString("1000.01")
	assert.True(t, IsExceedingVolumeLimits(c))
}

func TestTransactionUtilization(t *testing.T) {
	limit := 200
	c := capped("", &limit)
	c.CurrentMonthTransactions = 50

	assert.Equal(t, 25.0, TransactionUtilizationPercent(c))
	assert.False(t, IsExceedingTransactionLimits(c))

	c.CurrentMonthTransactions = 201
	assert.True(t, IsExceedingTransactionLimits(c))

	assert.Equal(t, 0.0, TransactionUtilizationPercent(capped("", nil)))
}

func TestSummaryFor(t *testing.T) {
	c := capped("70000", nil)
	c.CurrentMonthVolume = decimal.RequireFromString("1234.56")
	c.CurrentMonthTransactions = 3

	s := SummaryFor(c)
	assert.Equal(t, "business_flat_rate", s.PackageSlug)
	assert.Equal(t, 1.76, s.VolumeUtilization)
	assert.Equal(t, 3, s.Transactions)
	require.NotNil(t, s.VolumeCap)
	assert.Nil(t, s.TransactionCap)
}

func TestRecordUsage(t *testing.T) {
	db := testutil.NewTestDB(t)
	pkg := testutil.FlatRatePackage(t, db, "growth_flat_rate", "299", "25000")
	c := testutil.Client(t, db, "merchant@example.com", pkg)
	clients := repository.NewClientRepository(db)
	tracker := NewTracker(clients)

	require.NoError(t, tracker.RecordUsage(context.Background(), c.ID, decimal.RequireFromString("100.25"), 1))
	require.NoError(t, tracker.RecordUsage(context.Background(), c.ID, decimal.RequireFromString("50"), 2))

	stored, err := clients.GetByID(c.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentMonthVolume.Equal(decimal.RequireFromString("150.25")), stored.CurrentMonthVolume.String())
	assert.Equal(t, 3, stored.CurrentMonthTransactions)
}

func TestRecordUsage_RejectsNegative(t *testing.T) {
	tracker := NewTracker(nil)

	assert.ErrorIs(t, tracker.RecordUsage(context.Background(), 1, decimal.NewFromInt(-1), 0), ErrNegativeUsage)
	assert.ErrorIs(t, tracker.RecordUsage(context.Background(), 1, decimal.Zero, -1), ErrNegativeUsage)
}

func TestRecordUsage_UnknownClient(t *testing.T) {
	db := testutil.NewTestDB(t)
	tracker := NewTracker(repository.NewClientRepository(db))

	assert.Error(t, tracker.RecordUsage(context.Background(), 404, decimal.NewFromInt(1), 1))
}

func TestRecordUsage_Concurrent(t *testing.T) {
	db := testutil.NewTestDB(t)
	pkg := testutil.FlatRatePackage(t, db, "growth_flat_rate", "299", "25000")
	c := testutil.Client(t, db, "busy@example.com", pkg)
	clients := repository.NewClientRepository(db)
	tracker := NewTracker(clients)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tracker.RecordUsage(context.Background(), c.ID, decimal.NewFromInt(10), 1))
		}()
	}
	wg.Wait()

	stored, err := clients.GetByID(c.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentMonthVolume.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 10, stored.CurrentMonthTransactions)
}

func TestResetMonthlyUsage(t *testing.T) {
	db := testutil.NewTestDB(t)
	pkg := testutil.FlatRatePackage(t, db, "growth_flat_rate", "299", "25000")
	c := testutil.Client(t, db, "merchant@example.com", pkg)
	clients := repository.NewClientRepository(db)
	tracker := NewTracker(clients)
	at := time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)
	tracker.now = func() time.Time { return at }

	require.NoError(t, tracker.RecordUsage(context.Background(), c.ID, decimal.NewFromInt(500), 4))
	c, err := clients.GetByID(c.ID)
	require.NoError(t, err)
	require.NoError(t, tracker.ResetMonthlyUsage(context.Background(), c))

	assert.True(t, c.CurrentMonthVolume.IsZero())
	require.NotNil(t, c.LastUsageReset)
	assert.True(t, c.LastUsageReset.Equal(at))

	stored, err := clients.GetByID(c.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentMonthVolume.IsZero())
	assert.Equal(t, 0, stored.CurrentMonthTransactions)
	require.NotNil(t, stored.LastUsageReset)
}
