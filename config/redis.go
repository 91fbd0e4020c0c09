package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/A-tamer/hospital-management-system/util"
	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisMu     sync.RWMutex
)

// ConnectRedis creates the shared Redis client. It returns nil without an
// error when REDIS_ADDR is empty or APPENV=test, in which case callers run
// without rate limiting.
func ConnectRedis(cfg *Config) (*redis.Client, error) {
	if cfg == nil || cfg.RedisAddr == "" || cfg.AppEnv == "test" || IsTestEnv() {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	SetRedisClient(rdb)
	log := util.Logger()
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	return rdb, nil
}

// GetRedisClient returns the shared Redis client, or nil when Redis is not in use.
func GetRedisClient() *redis.Client {
	redisMu.RLock()
	defer redisMu.RUnlock()
	return redisClient
}

// SetRedisClient replaces the shared client. Tests use it to inject a mock.
func SetRedisClient(client *redis.Client) {
	redisMu.Lock()
	defer redisMu.Unlock()
	redisClient = client
}
