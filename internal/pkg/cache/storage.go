package cache

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"

	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

// LimiterDatabase is the Redis database holding fiber limiter entries, apart from the cache.
const LimiterDatabase = 2

// NewLimiterStorage returns a fiber.Storage backed by Redis for the webhook limiter.
func NewLimiterStorage(cfg config.CacheConfig) fiber.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: LimiterDatabase,
		Reset:    false,
	})
}
