package cache

import (
	"context"
	"fmt"
	"time"

	"loyaltysystem/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var RedisClient *redis.Client

// InitRedis connects the client used by the idempotency guard.
func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		zap.L().Fatal("failed to connect to Redis", zap.Error(err))
	}

	RedisClient = client
	zap.L().Info("Redis connected", zap.String("addr", client.Options().Addr))
	return client
}
