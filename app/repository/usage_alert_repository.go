package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cryptogate/cryptogate/app/models"
)

type usageAlertRepository struct {
	db *gorm.DB
}

// NewUsageAlertRepository creates a new usage alert repository instance
func NewUsageAlertRepository(db *gorm.DB) UsageAlertRepository {
	return &usageAlertRepository{db: db}
}

func (r *usageAlertRepository) HighestThreshold(clientID uint, billingMonth string) (int, error) {
	var highest int
	err := r.db.Model(&models.UsageAlert{}).
		Select("COALESCE(MAX(threshold), 0)").
		Where("client_id = ? AND billing_month = ?", clientID, billingMonth).
		Scan(&highest).Error
	return highest, err
}

func (r *usageAlertRepository) CreateIfAbsent(alert *models.UsageAlert, deliver func() error) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "client_id"},
				{Name: "threshold"},
				{Name: "billing_month"},
			},
			DoNothing: true,
		}).Create(alert)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if deliver != nil {
			if err := deliver(); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *usageAlertRepository) ListByClient(clientID uint, billingMonth string) ([]models.UsageAlert, error) {
	var alerts []models.UsageAlert
	q := r.db.Where("client_id = ?", clientID)
	if billingMonth != "" {
		q = q.Where("billing_month = ?", billingMonth)
	}
	err := q.Order("billing_month DESC, threshold ASC").Find(&alerts).Error
	return alerts, err
}
