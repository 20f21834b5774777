package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"

	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

// RequireAdmin protects admin routes with HTTP basic auth against a bcrypt hash.
// With no hash configured every request is rejected.
func RequireAdmin(cfg config.AdminConfig) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm: "cryptogate admin",
		Authorizer: func(user, pass string) bool {
			if cfg.PasswordHash == "" {
				return false
			}
			if subtle.ConstantTimeCompare([]byte(user), []byte(cfg.User)) != 1 {
				return false
			}
			return bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(pass)) == nil
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="cryptogate admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		},
		ContextUsername: KeyAdminUser,
	})
}
