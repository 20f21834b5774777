package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/cryptogate/cryptogate/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	ac := h.adminCtl
	adminGroup := app.Group("/admin", middleware.RequireAdmin(h.admin))

	// Package catalog
	adminGroup.Get("/packages", ac.HandleListPackages)
	adminGroup.Post("/packages", ac.HandleCreatePackage)
	adminGroup.Post("/packages/validate-margin", ac.HandleValidateMargin)
	adminGroup.Put("/packages/:id", ac.HandleUpdatePackage)
	adminGroup.Post("/packages/:id/deactivate", ac.HandleDeactivatePackage)

	// Clients
	adminGroup.Post("/clients", ac.HandleCreateClient)
	adminGroup.Post("/clients/:id/api-key", ac.HandleRotateAPIKey)
	adminGroup.Get("/clients/:id/margin", ac.HandleClientMargin)
	adminGroup.Get("/clients/:id/usage", ac.HandleClientUsage)
	adminGroup.Put("/clients/:id/package", ac.HandleAssignPackage)
	adminGroup.Put("/clients/:id/overrides", ac.HandleSetOverrides)

	// Usage jobs
	adminGroup.Post("/usage/check", ac.HandleUsageCheck)
	adminGroup.Post("/usage/reset", ac.HandleUsageReset)
	adminGroup.Post("/usage/test-alert", ac.HandleTestAlert)

	// Process monitor
	adminGroup.Get("/monitor", monitor.New(monitor.Config{Title: "cryptogate monitor"}))
}
