package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/internal/pkg/entitlements"
	"github.com/cryptogate/cryptogate/internal/pkg/metrics/counter"
	"github.com/cryptogate/cryptogate/internal/pkg/middleware"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

// ClientAPIController serves the authenticated client's own entitlements and usage.
type ClientAPIController struct {
	resolver *entitlements.Resolver
	rdb      *redis.Client
}

// NewClientAPIController creates a client API controller. rdb may be nil.
func NewClientAPIController(resolver *entitlements.Resolver, rdb *redis.Client) *ClientAPIController {
	return &ClientAPIController{resolver: resolver, rdb: rdb}
}

// HandleFeatures returns the effective features and limits.
func (cc *ClientAPIController) HandleFeatures(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var slug string
	if client.HasPackage() {
		slug = client.Package.Slug
	}
	return c.JSON(fiber.Map{
		"client_id":       client.ID,
		"package":         slug,
		"package_name":    cc.resolver.PackageDisplayName(client),
		"upgrade_package": cc.resolver.UpgradePackageName(client),
		"features":        cc.resolver.ClientFeatures(client),
		"limits":          cc.resolver.Limits(client),
	})
}

// HandleUsage returns the current month's counters and utilization.
func (cc *ClientAPIController) HandleUsage(c *fiber.Ctx) error {
	client := middleware.ClientFromContext(c)
	if client == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	month := models.BillingMonth(time.Now())
	resp := fiber.Map{
		"billing_month": month,
		"usage":         usage.SummaryFor(client),
	}
	if cc.rdb != nil {
		calls, err := counter.APICalls(c.UserContext(), cc.rdb, client.ID, month)
		if err != nil {
			log.Warnf("[ClientAPI] API call counter for client %d: %v", client.ID, err)
		} else {
			resp["api_calls"] = calls
		}
		if client.Package.HasAPICallCap() {
			resp["api_call_cap"] = *client.Package.MaxAPICallsPerMonth
		}
	}
	return c.JSON(resp)
}
