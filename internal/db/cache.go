package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	redis "github.com/redis/go-redis/v9"
)

const balancePrefix = "pay2win:balance:"

// CacheService - кэш балансов в Redis; источник истины всегда LedgerStorage
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(ctx context.Context, addr string, user string, pwd string, ttl time.Duration) (*CacheService, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    pwd,
		Username:    user,
		DB:          0,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewCacheServiceWithClient(client, ttl), nil
}

func NewCacheServiceWithClient(client *redis.Client, ttl time.Duration) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CacheService{client, ttl}
}

func (c *CacheService) Close() error {
	return c.client.Close()
}

func (c *CacheService) GetBalance(ctx context.Context, utorid string) (points int64, err error) {
	val, err := c.client.Get(ctx, balancePrefix+utorid).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("balance of %s is not cached: %w", utorid, model.ErrNotFound)
	} else if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (c *CacheService) SetBalance(ctx context.Context, utorid string, points int64) error {
	return c.client.Set(ctx, balancePrefix+utorid, points, c.ttl).Err()
}

func (c *CacheService) InvalidateBalance(ctx context.Context, utorid string) error {
	return c.client.Del(ctx, balancePrefix+utorid).Err()
}
