package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/billing"
	"github.com/cryptogate/cryptogate/internal/pkg/entitlements"
	"github.com/cryptogate/cryptogate/internal/pkg/jobs"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

// AdminController handles package management and client administration.
type AdminController struct {
	repos    *repository.Repositories
	billing  *billing.Service
	runner   *jobs.Runner
	resolver *entitlements.Resolver
}

// NewAdminController creates a new admin controller with its dependencies
func NewAdminController(repos *repository.Repositories, svc *billing.Service, runner *jobs.Runner, resolver *entitlements.Resolver) *AdminController {
	return &AdminController{repos: repos, billing: svc, runner: runner, resolver: resolver}
}

// HandleListPackages lists packages; ?include_inactive=true adds deactivated ones.
func (ac *AdminController) HandleListPackages(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	pkgs, err := ac.billing.ListPackages(ctx, c.QueryBool("include_inactive"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"packages": pkgs})
}

func (ac *AdminController) HandleCreatePackage(c *fiber.Ctx) error {
	var in billing.PackageInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	pkg, err := ac.billing.CreatePackage(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pkg)
}

func (ac *AdminController) HandleUpdatePackage(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in billing.PackageInput
	if err := c.BodyParser(&in); err != nil {
		return respondError(c, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	pkg, err := ac.billing.UpdatePackage(ctx, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pkg)
}

func (ac *AdminController) HandleDeactivatePackage(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	pkg, err := ac.billing.DeactivatePackage(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pkg)
}

type validateMarginRequest struct {
	MonthlyPrice      decimal.Decimal  `json:"monthly_price"`
	MaxVolumePerMonth *decimal.Decimal `json:"max_volume_per_month"`
	MinMarginPercent  *decimal.Decimal `json:"min_margin_percent"`
}

// HandleValidateMargin checks a price/cap pair without storing anything.
func (ac *AdminController) HandleValidateMargin(c *fiber.Ctx) error {
	var req validateMarginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body"))
	}
	minMargin := models.DefaultMinMarginPercent
	if req.MinMarginPercent != nil && !req.MinMarginPercent.IsNegative() {
		minMargin = *req.MinMarginPercent
	}
	res := billing.ValidateMargin(req.MonthlyPrice, req.MaxVolumePerMonth, minMargin)
	return c.JSON(fiber.Map{
		"is_valid":           res.IsValid,
		"unlimited":          res.Unlimited,
		"calculated_margin":  res.CalculatedMargin.StringFixed(3),
		"min_margin_percent": minMargin.StringFixed(2),
	})
}

type createClientRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	Email       string `json:"email" validate:"required,email,max=200"`
	CompanyName string `json:"company_name" validate:"max=200"`
	PackageID   *uint  `json:"package_id"`
}

// HandleCreateClient registers a client and returns its API key once.
func (ac *AdminController) HandleCreateClient(c *fiber.Ctx) error {
	var req createClientRequest
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	client := &models.Client{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		CompanyName: strings.TrimSpace(req.CompanyName),
		IsActive:    true,
		Status:      models.StatusNoPackage,
	}
	apiKey, err := client.IssueAPIKey()
	if err != nil {
		return respondError(c, err)
	}
	if err := ac.repos.Client.Create(client); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") || strings.Contains(err.Error(), "Duplicate") {
			return respondError(c, fiber.NewError(fiber.StatusConflict, "email already registered"))
		}
		return respondError(c, err)
	}

	if req.PackageID != nil {
		assigned, err := ac.billing.AssignPackage(ctx, client.ID, req.PackageID)
		if err != nil {
			return respondError(c, err)
		}
		client = assigned
	}

	log.Infof("[Admin] Created client %d (%s)", client.ID, client.Email)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"client": client, "api_key": apiKey})
}

// HandleRotateAPIKey issues a new API key, invalidating the old one.
func (ac *AdminController) HandleRotateAPIKey(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	client, err := ac.repos.Client.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, billing.ErrClientNotFound)
		}
		return respondError(c, err)
	}
	apiKey, err := client.IssueAPIKey()
	if err != nil {
		return respondError(c, err)
	}
	if err := ac.repos.Client.UpdateAPIKey(client.ID, client.APIKeyHash, client.APIKeyPrefix); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"client_id": client.ID, "api_key": apiKey, "api_key_prefix": client.APIKeyPrefix})
}

func (ac *AdminController) HandleClientMargin(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	status, err := ac.billing.MarginStatus(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}

// HandleClientUsage shows counters, this month's alerts and archived months.
func (ac *AdminController) HandleClientUsage(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	client, err := ac.repos.Client.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, billing.ErrClientNotFound)
		}
		return respondError(c, err)
	}
	alertList, err := ac.repos.UsageAlert.ListByClient(id, c.Query("month"))
	if err != nil {
		return respondError(c, err)
	}
	snapshots, err := ac.repos.UsageSnapshot.ListByClient(id, 12)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"usage":     usage.SummaryFor(client),
		"features":  ac.resolver.ClientFeatures(client),
		"alerts":    alertList,
		"snapshots": snapshots,
	})
}

type assignPackageRequest struct {
	PackageID *uint `json:"package_id"`
}

// HandleAssignPackage sets the client's package; a null package_id clears it.
func (ac *AdminController) HandleAssignPackage(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req assignPackageRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body"))
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	client, err := ac.billing.AssignPackage(ctx, id, req.PackageID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(client)
}

type overridesRequest struct {
	Features []string `json:"features" validate:"dive,max=100"`
}

func (ac *AdminController) HandleSetOverrides(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req overridesRequest
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	client, err := ac.billing.SetOverrides(ctx, id, req.Features)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(client)
}

type usageCheckRequest struct {
	ClientID uint `json:"client_id"`
}

// HandleUsageCheck runs the alert check for one client, or for all when client_id is 0.
func (ac *AdminController) HandleUsageCheck(c *fiber.Ctx) error {
	var req usageCheckRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body"))
		}
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if req.ClientID != 0 {
		sent, err := ac.runner.CheckClientUsage(ctx, req.ClientID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"client_id": req.ClientID, "alert_sent": sent})
	}

	report, err := ac.runner.CheckUsageAlerts(ctx)
	if err != nil {
		return respondError(c, err)
	}
	failures := make([]fiber.Map, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, fiber.Map{"client_id": f.ClientID, "error": f.Err.Error()})
	}
	return c.JSON(fiber.Map{
		"checked":  report.Checked,
		"sent":     report.Sent,
		"failed":   report.Failed,
		"alerted":  report.Alerted,
		"failures": failures,
	})
}

type usageResetRequest struct {
	DryRun   bool `json:"dry_run"`
	Force    bool `json:"force"`
	ClientID uint `json:"client_id"`
}

// HandleUsageReset runs the monthly reset with the given options.
func (ac *AdminController) HandleUsageReset(c *fiber.Ctx) error {
	var req usageResetRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body"))
		}
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	report, err := ac.runner.ResetMonthlyUsage(ctx, usage.ResetOptions{DryRun: req.DryRun, Force: req.Force, ClientID: req.ClientID})
	if err != nil {
		return respondError(c, err)
	}
	results := make([]fiber.Map, 0, len(report.Results))
	for _, r := range report.Results {
		item := fiber.Map{"client_id": r.ClientID, "outcome": r.Outcome, "volume": r.Volume, "transactions": r.Transactions}
		if r.Reason != "" {
			item["reason"] = r.Reason
		}
		if r.Err != nil {
			item["error"] = r.Err.Error()
		}
		results = append(results, item)
	}
	return c.JSON(fiber.Map{
		"dry_run":   report.DryRun,
		"attempted": report.Attempted,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"results":   results,
	})
}

type testAlertRequest struct {
	ClientID  uint `json:"client_id" validate:"required"`
	Threshold int  `json:"threshold" validate:"required,min=1,max=1000"`
}

func (ac *AdminController) HandleTestAlert(c *fiber.Ctx) error {
	var req testAlertRequest
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := ac.runner.TestUsageAlert(ctx, req.ClientID, req.Threshold); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}
