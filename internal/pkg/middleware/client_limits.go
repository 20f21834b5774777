package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/internal/pkg/entitlements"
	"github.com/cryptogate/cryptogate/internal/pkg/metrics"
	"github.com/cryptogate/cryptogate/internal/pkg/metrics/counter"
	"github.com/cryptogate/cryptogate/internal/pkg/ratelimit"
)

// ClientRateLimit enforces the client's api_rate_limit feature per minute.
// Redis errors let the request through.
func ClientRateLimit(limiter *ratelimit.Limiter, resolver *entitlements.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := ClientFromContext(c)
		if client == nil {
			return c.Next()
		}

		res, err := limiter.Allow(c.UserContext(), client.ID, resolver.APIRateLimit(client))
		if err != nil {
			log.Warnf("[RateLimit] Client %d: %v", client.ID, err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		if !res.Allowed {
			metrics.APIRequestsLimited.WithLabelValues("rate").Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(time.Until(res.ResetAt).Seconds())+1))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "API rate limit exceeded"})
		}
		return c.Next()
	}
}

// MonthlyAPICap counts the request against the package's monthly API call cap.
// Redis errors let the request through.
func MonthlyAPICap(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := ClientFromContext(c)
		if client == nil {
			return c.Next()
		}

		calls, err := counter.AddAPICall(c.UserContext(), rdb, client.ID, models.BillingMonth(time.Now()))
		if err != nil {
			log.Warnf("[APICap] Client %d: %v", client.ID, err)
			return c.Next()
		}
		if !client.Package.HasAPICallCap() {
			return c.Next()
		}

		limit := int64(*client.Package.MaxAPICallsPerMonth)
		c.Set("X-Monthly-API-Limit", strconv.FormatInt(limit, 10))
		if calls > limit {
			metrics.APIRequestsLimited.WithLabelValues("monthly").Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "monthly_api_limit", "message": "Monthly API call limit reached"})
		}
		return c.Next()
	}
}
