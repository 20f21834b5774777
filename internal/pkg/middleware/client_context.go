package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cryptogate/cryptogate/app/models"
)

const (
	KeyClient    = "API_CLIENT"
	KeyAdminUser = "ADMIN_USER"
)

// ClientFromContext returns the client authenticated by APIKeyAuth, or nil.
func ClientFromContext(c *fiber.Ctx) *models.Client {
	client, _ := c.Locals(KeyClient).(*models.Client)
	return client
}
