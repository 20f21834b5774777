package repository

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/models"
)

// clientRepository implements the ClientRepository interface
type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new client repository instance
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

// Create creates a new client in the database
func (r *clientRepository) Create(client *models.Client) error {
	return r.db.Omit("Package").Create(client).Error
}

// GetByID retrieves a client with its package
func (r *clientRepository) GetByID(id uint) (*models.Client, error) {
	var client models.Client
	if err := r.db.Preload("Package").First(&client, id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// GetByAPIKeyHash resolves an API key hash to an active client.
func (r *clientRepository) GetByAPIKeyHash(hash string) (*models.Client, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var client models.Client
	err := r.db.Preload("Package").
		Where("api_key_hash = ? AND api_key_hash <> '' AND is_active = ?", trimmed, true).
		First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// ListActiveFlatRate returns active clients whose package bills a flat rate.
func (r *clientRepository) ListActiveFlatRate() ([]models.Client, error) {
	flatRate := r.db.Model(&models.Package{}).Select("id").Where("billing_mode = ?", models.BillingModeFlatRate)
	var clients []models.Client
	err := r.db.Preload("Package").
		Where("is_active = ? AND package_id IN (?)", true, flatRate).
		Order("id ASC").
		Find(&clients).Error
	return clients, err
}

// IncrementUsage adds to the monthly counters in a single UPDATE so concurrent
// payment events for one client cannot lose increments.
func (r *clientRepository) IncrementUsage(id uint, volume decimal.Decimal, transactions int) error {
	res := r.db.Model(&models.Client{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_month_volume":       gorm.Expr("current_month_volume + CAST(? AS DECIMAL(14,2))", volume.String()),
		"current_month_transactions": gorm.Expr("current_month_transactions + ?", transactions),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ResetUsage removes the archived counters from the monthly totals and stamps the reset time.
func (r *clientRepository) ResetUsage(id uint, volume decimal.Decimal, transactions int, at time.Time) error {
	res := r.db.Model(&models.Client{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_month_volume":       gorm.Expr("current_month_volume - CAST(? AS DECIMAL(14,2))", volume.String()),
		"current_month_transactions": gorm.Expr("current_month_transactions - ?", transactions),
		"last_usage_reset":           at,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateAPIKey stores a new API key hash and display prefix.
func (r *clientRepository) UpdateAPIKey(id uint, hash, prefix string) error {
	return r.db.Model(&models.Client{}).Where("id = ?", id).Updates(map[string]interface{}{
		"api_key_hash":   hash,
		"api_key_prefix": prefix,
	}).Error
}
