package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tiendapos/internal/domain"
)

const lowStockKey = "reports:low-stock"

type RedisLowStockCache struct {
	client *redis.Client
}

func NewRedisLowStockCache(addr string, password string, db int) *RedisLowStockCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisLowStockCache{client: client}
}

func (c *RedisLowStockCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisLowStockCache) Close() error {
	return c.client.Close()
}

func (c *RedisLowStockCache) Get(ctx context.Context) (*domain.LowStockReport, bool, error) {
	val, err := c.client.Get(ctx, lowStockKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.LowStockReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisLowStockCache) Set(ctx context.Context, report *domain.LowStockReport, ttl time.Duration) error {
	if report == nil {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, lowStockKey, payload, ttl).Err()
}
