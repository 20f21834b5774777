package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptogate/cryptogate/app/controllers"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

type HttpRouter struct {
	admin    config.AdminConfig
	adminCtl *controllers.AdminController
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	h.registerAdminRoutes(app)
}

func NewHttpRouter(admin config.AdminConfig, adminCtl *controllers.AdminController) *HttpRouter {
	return &HttpRouter{admin: admin, adminCtl: adminCtl}
}
