package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cryptogate/cryptogate/app/models"
)

type usageSnapshotRepository struct {
	db *gorm.DB
}

// NewUsageSnapshotRepository creates a new usage snapshot repository instance
func NewUsageSnapshotRepository(db *gorm.DB) UsageSnapshotRepository {
	return &usageSnapshotRepository{db: db}
}

// Save upserts the snapshot for (client, billing month). A repeated reset in
// the same period replaces the earlier numbers.
func (r *usageSnapshotRepository) Save(snapshot *models.UsageSnapshot) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "client_id"},
			{Name: "billing_month"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"package_slug",
			"volume",
			"transactions",
			"archived_at",
		}),
	}).Create(snapshot).Error
}

func (r *usageSnapshotRepository) ListByClient(clientID uint, limit int) ([]models.UsageSnapshot, error) {
	var snapshots []models.UsageSnapshot
	q := r.db.Where("client_id = ?", clientID).Order("billing_month DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&snapshots).Error
	return snapshots, err
}
