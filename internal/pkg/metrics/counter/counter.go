package counter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const apiCallsKeyPrefix = "client:counters:api_calls:"

// apiCallsTTL keeps a month's hash around long enough to be read after rollover.
const apiCallsTTL = 40 * 24 * time.Hour

func apiCallsKey(billingMonth string) string {
	return apiCallsKeyPrefix + billingMonth
}

// AddAPICall increments the client's API call counter for billingMonth and returns the new total.
func AddAPICall(ctx context.Context, rdb *redis.Client, clientID uint, billingMonth string) (int64, error) {
	key := apiCallsKey(billingMonth)
	field := strconv.FormatUint(uint64(clientID), 10)

	pipe := rdb.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, field, 1)
	pipe.Expire(ctx, key, apiCallsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// APICalls returns the client's API call count for billingMonth.
func APICalls(ctx context.Context, rdb *redis.Client, clientID uint, billingMonth string) (int64, error) {
	field := strconv.FormatUint(uint64(clientID), 10)
	n, err := rdb.HGet(ctx, apiCallsKey(billingMonth), field).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// AllAPICalls returns every client's API call count for billingMonth.
func AllAPICalls(ctx context.Context, rdb *redis.Client, billingMonth string) (map[uint]int64, error) {
	data, err := rdb.HGetAll(ctx, apiCallsKey(billingMonth)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		n, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil {
			continue
		}
		out[uint(id)] = n
	}
	return out, nil
}
