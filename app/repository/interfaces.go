package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/models"
)

// ClientRepository defines the interface for client-related database operations
type ClientRepository interface {
	Create(client *models.Client) error
	GetByID(id uint) (*models.Client, error)
	GetByAPIKeyHash(hash string) (*models.Client, error)
	ListActiveFlatRate() ([]models.Client, error)
	IncrementUsage(id uint, volume decimal.Decimal, transactions int) error
	// ResetUsage subtracts the archived counters and stamps the reset time, so
	// increments committed after they were read carry into the new month.
	ResetUsage(id uint, volume decimal.Decimal, transactions int, at time.Time) error
	UpdateAPIKey(id uint, hash, prefix string) error
}

// UsageAlertRepository defines the interface for usage alert records
type UsageAlertRepository interface {
	// HighestThreshold returns the highest threshold alerted for the month, or 0.
	HighestThreshold(clientID uint, billingMonth string) (int, error)
	// CreateIfAbsent inserts alert unless its (client, threshold, month) key exists,
	// then runs deliver in the same transaction. A deliver error rolls the insert back.
	CreateIfAbsent(alert *models.UsageAlert, deliver func() error) (bool, error)
	ListByClient(clientID uint, billingMonth string) ([]models.UsageAlert, error)
}

// UsageSnapshotRepository defines the interface for archived usage counters
type UsageSnapshotRepository interface {
	Save(snapshot *models.UsageSnapshot) error
	ListByClient(clientID uint, limit int) ([]models.UsageSnapshot, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Client        ClientRepository
	UsageAlert    UsageAlertRepository
	UsageSnapshot UsageSnapshotRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Client:        NewClientRepository(db),
		UsageAlert:    NewUsageAlertRepository(db),
		UsageSnapshot: NewUsageSnapshotRepository(db),
	}
}
