package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/models"
)

// Service manages packages, client package assignment and payment webhook bookkeeping.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

func validatePackage(pkg *models.Package) error {
	if err := pkg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	if pkg.CommissionRate.IsNegative() || pkg.MonthlyPrice.IsNegative() || pkg.AnnualPrice.IsNegative() {
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidPackage)
	}
	if pkg.CommissionRate.GreaterThan(hundred) {
		return fmt.Errorf("%w: commission rate must not exceed 100", ErrInvalidPackage)
	}
	if (pkg.MaxTransactionsPerMonth != nil && *pkg.MaxTransactionsPerMonth < 0) ||
		(pkg.MaxAPICallsPerMonth != nil && *pkg.MaxAPICallsPerMonth < 0) {
		return fmt.Errorf("%w: caps must not be negative", ErrInvalidPackage)
	}
	if _, err := CheckPackageMargin(pkg); err != nil {
		return err
	}
	return nil
}

func (s *Service) ensureUniqueSlug(slug string, id uint) error {
	exists, err := s.repo.SlugExistsExceptID(slug, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateSlug
	}
	return nil
}

func (s *Service) loadPackage(id uint) (*models.Package, error) {
	pkg, err := s.repo.GetPackageByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPackageNotFound
	}
	return pkg, err
}

func (s *Service) loadClient(id uint) (*models.Client, error) {
	c, err := s.repo.GetClientByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	return c, err
}

// CreatePackage validates and stores a new active package. Configurations
// violating the margin floor are rejected with ErrMarginBelowFloor.
func (s *Service) CreatePackage(ctx context.Context, in PackageInput) (*models.Package, error) {
	_ = ctx
	pkg := &models.Package{Status: models.PackageStatusActive}
	in.apply(pkg)
	if err := validatePackage(pkg); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueSlug(pkg.Slug, 0); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePackage(pkg); err != nil {
		return nil, err
	}
	log.Infof("[Packages] Created package %s (id=%d, mode=%s)", pkg.Slug, pkg.ID, pkg.BillingMode)
	return pkg, nil
}

// UpdatePackage replaces the editable fields of a package. Status is kept.
// A slug change re-syncs the denormalized client statuses.
func (s *Service) UpdatePackage(ctx context.Context, id uint, in PackageInput) (*models.Package, error) {
	pkg, err := s.loadPackage(id)
	if err != nil {
		return nil, err
	}
	oldSlug := pkg.Slug
	in.apply(pkg)
	if err := validatePackage(pkg); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueSlug(pkg.Slug, pkg.ID); err != nil {
		return nil, err
	}
	if err := s.repo.SavePackage(pkg); err != nil {
		return nil, err
	}
	if oldSlug != pkg.Slug {
		if _, err := s.SyncClientStatuses(ctx); err != nil {
			log.Warnf("[Packages] Status sync after slug change %s -> %s failed: %v", oldSlug, pkg.Slug, err)
		}
	}
	return pkg, nil
}

// DeactivatePackage soft-deletes a package. Clients already on it keep it.
func (s *Service) DeactivatePackage(ctx context.Context, id uint) (*models.Package, error) {
	_ = ctx
	pkg, err := s.loadPackage(id)
	if err != nil {
		return nil, err
	}
	if pkg.Status == models.PackageStatusInactive {
		return pkg, nil
	}
	pkg.Status = models.PackageStatusInactive
	if err := s.repo.SavePackage(pkg); err != nil {
		return nil, err
	}
	log.Infof("[Packages] Deactivated package %s (id=%d)", pkg.Slug, pkg.ID)
	return pkg, nil
}

// ListPackages returns packages ordered by billing mode and tier.
func (s *Service) ListPackages(ctx context.Context, includeInactive bool) ([]models.Package, error) {
	_ = ctx
	return s.repo.ListPackages(includeInactive)
}

// GetPackage returns a package by id.
func (s *Service) GetPackage(ctx context.Context, id uint) (*models.Package, error) {
	_ = ctx
	return s.loadPackage(id)
}

// AssignPackage sets or clears (packageID == nil) a client's package and
// writes the matching status in the same update.
func (s *Service) AssignPackage(ctx context.Context, clientID uint, packageID *uint) (*models.Client, error) {
	_ = ctx
	client, err := s.loadClient(clientID)
	if err != nil {
		return nil, err
	}

	var pkg *models.Package
	if packageID != nil {
		pkg, err = s.loadPackage(*packageID)
		if err != nil {
			return nil, err
		}
		if !pkg.IsActive() {
			return nil, ErrPackageInactive
		}
	}

	status := StatusForPackage(pkg)
	if err := s.repo.UpdateClientPackage(client.ID, packageID, status); err != nil {
		return nil, err
	}
	client.PackageID = packageID
	client.Package = pkg
	client.Status = status
	log.Infof("[Packages] Client %d assigned to %s", client.ID, status)
	return client, nil
}

// SetOverrides replaces a client's manually granted feature tokens.
func (s *Service) SetOverrides(ctx context.Context, clientID uint, tokens []string) (*models.Client, error) {
	_ = ctx
	client, err := s.loadClient(clientID)
	if err != nil {
		return nil, err
	}
	overrides := normalizeOverrides(tokens)
	if err := s.repo.UpdateClientOverrides(client.ID, overrides); err != nil {
		return nil, err
	}
	client.FeaturesOverride = overrides
	return client, nil
}

// MarginStatus loads a client and reports its package margin.
func (s *Service) MarginStatus(ctx context.Context, clientID uint) (MarginStatus, error) {
	_ = ctx
	client, err := s.loadClient(clientID)
	if err != nil {
		return MarginStatus{}, err
	}
	return MarginStatusFor(client), nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.PaymentWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		ClientID:        in.ClientID,
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// DiscardWebhookEvent removes a stored event whose processing failed so a
// provider retry of the same event id is applied instead of reported as a duplicate.
func (s *Service) DiscardWebhookEvent(ctx context.Context, webhookEventID uint) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	return s.repo.DeleteWebhookEvent(webhookEventID)
}
