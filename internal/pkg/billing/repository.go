package billing

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cryptogate/cryptogate/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	CreatePackage(pkg *models.Package) error
	GetPackageByID(id uint) (*models.Package, error)
	ListPackages(includeInactive bool) ([]models.Package, error)
	SavePackage(pkg *models.Package) error
	SlugExistsExceptID(slug string, id uint) (bool, error)
	GetClientByID(id uint) (*models.Client, error)
	ListClients() ([]models.Client, error)
	UpdateClientPackage(clientID uint, packageID *uint, status string) error
	UpdateClientStatus(clientID uint, status string) error
	UpdateClientOverrides(clientID uint, overrides []string) error
	CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	DeleteWebhookEvent(id uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePackage(pkg *models.Package) error {
	return r.db.Create(pkg).Error
}

func (r *gormRepository) GetPackageByID(id uint) (*models.Package, error) {
	var pkg models.Package
	if err := r.db.First(&pkg, id).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *gormRepository) ListPackages(includeInactive bool) ([]models.Package, error) {
	var pkgs []models.Package
	q := r.db.Order("billing_mode ASC, sort_order ASC, id ASC")
	if !includeInactive {
		q = q.Where("status = ?", models.PackageStatusActive)
	}
	err := q.Find(&pkgs).Error
	return pkgs, err
}

func (r *gormRepository) SavePackage(pkg *models.Package) error {
	return r.db.Save(pkg).Error
}

func (r *gormRepository) SlugExistsExceptID(slug string, id uint) (bool, error) {
	var count int64
	q := r.db.Model(&models.Package{}).Where("slug = ?", slug)
	if id != 0 {
		q = q.Where("id <> ?", id)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) GetClientByID(id uint) (*models.Client, error) {
	var c models.Client
	if err := r.db.Preload("Package").First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) ListClients() ([]models.Client, error) {
	var clients []models.Client
	err := r.db.Preload("Package").Order("id ASC").Find(&clients).Error
	return clients, err
}

func (r *gormRepository) UpdateClientPackage(clientID uint, packageID *uint, status string) error {
	var pkgValue interface{}
	if packageID != nil {
		pkgValue = *packageID
	}
	return r.db.Model(&models.Client{}).Where("id = ?", clientID).Updates(map[string]interface{}{
		"package_id": pkgValue,
		"status":     status,
	}).Error
}

func (r *gormRepository) UpdateClientStatus(clientID uint, status string) error {
	return r.db.Model(&models.Client{}).Where("id = ?", clientID).Update("status", status).Error
}

func (r *gormRepository) UpdateClientOverrides(clientID uint, overrides []string) error {
	return r.db.Model(&models.Client{}).Where("id = ?", clientID).
		Update("features_override", datatypes.JSONSlice[string](overrides)).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) DeleteWebhookEvent(id uint) error {
	return r.db.Delete(&models.PaymentWebhookEvent{}, id).Error
}
