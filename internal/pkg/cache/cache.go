package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// ErrLockHeld is returned when another process owns a lock.
var ErrLockHeld = errors.New("lock is held by another process")

// SetupCache initializes the connection to the Redis server
func SetupCache(cfg config.CacheConfig) {
	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to Redis at %s: %v", cfg.Addr(), err)
	} else {
		log.Infof("[Cache] Connected to Redis at %s: %s", cfg.Addr(), pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		panic("Cache not initialized. Call SetupCache first.")
	}
	return client
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock is a Redis lease owned by a single token.
type Lock struct {
	rdb   *redis.Client
	key   string
	token string
}

// AcquireLock takes key with SET NX for ttl. ErrLockHeld is returned when another owner holds it.
func AcquireLock(c context.Context, rdb *redis.Client, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := rdb.SetNX(c, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{rdb: rdb, key: key, token: token}, nil
}

// Release deletes the lock if it is still owned by this holder.
func (l *Lock) Release(c context.Context) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(c, l.rdb, []string{l.key}, l.token).Err()
}
