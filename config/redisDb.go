package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ConnectRedisWithRetry returns a Redis client plus a lock client on top of it.
// maxAttempts <= 0 retries until ctx is done.
func ConnectRedisWithRetry(ctx context.Context, s RedisSettings, maxAttempts int) (*redis.Client, *redislock.Client, error) {
	redisAddr := s.Address
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		log.Printf("REDIS_ADDRESS not set; defaulting to %s", redisAddr)
	}

	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: s.Password,
			DB:       0,
			PoolSize: 100,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, redisAddr)
			return rdb, redislock.New(rdb), nil
		}
		_ = rdb.Close()

		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, nil, fmt.Errorf("connect redis after %d attempts: %w", attempt, err)
		}
		sleep := backoffSleep(attempt)
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, err, sleep)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}
