package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/cryptogate/cryptogate/internal/pkg/entitlements"
	"github.com/cryptogate/cryptogate/internal/pkg/metrics"
	"github.com/cryptogate/cryptogate/internal/pkg/middleware"
	"github.com/cryptogate/cryptogate/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps     Deps
	handlers handlers
	limiter  *ratelimit.Limiter
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "cryptogate api",
		})
	})

	v1 := api.Group("/v1")

	webhookCfg := h.deps.Config.Webhook
	v1.Post("/webhooks/payments", limiter.New(limiter.Config{
		Max:        webhookCfg.RateLimit,
		Expiration: webhookCfg.RateWindow,
		Storage:    h.deps.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			metrics.APIRequestsLimited.WithLabelValues("webhook").Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}), h.handlers.webhook.HandlePaymentWebhook)

	client := v1.Group("/client", middleware.APIKeyAuth(h.handlers.repos.GetClientRepository()))
	if h.limiter != nil {
		client.Use(
			middleware.ClientRateLimit(h.limiter, entitlements.DefaultResolver()),
			middleware.MonthlyAPICap(h.deps.Redis),
		)
	}
	client.Get("/features", h.handlers.client.HandleFeatures)
	client.Get("/usage", h.handlers.client.HandleUsage)
}

func NewApiRouter(d Deps, h handlers, limiter *ratelimit.Limiter) *ApiRouter {
	return &ApiRouter{deps: d, handlers: h, limiter: limiter}
}
