package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/bookadmin/pkg/config"
	"github.com/example/bookadmin/pkg/models"
	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by ViewCache.Get when no view is stored.
var ErrCacheMiss = errors.New("cache miss")

// ViewCache stores reconciled order views in Redis as JSON.
type ViewCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// NewViewCache wraps client. Views expire after ttl; zero keeps them until
// invalidated.
func NewViewCache(client redis.Cmdable, ttl time.Duration) *ViewCache {
	return &ViewCache{client: client, ttl: ttl}
}

func viewKey(orderID string) string {
	return fmt.Sprintf("orderview:%s", orderID)
}

func (c *ViewCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *ViewCache) Get(ctx context.Context, orderID string) (*models.OrderView, error) {
	data, err := c.client.Get(ctx, viewKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var view models.OrderView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("corrupt cached view for %s: %w", orderID, err)
	}
	return &view, nil
}

func (c *ViewCache) Set(ctx context.Context, orderID string, view *models.OrderView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, viewKey(orderID), data, c.ttl).Err()
}

func (c *ViewCache) Invalidate(ctx context.Context, orderID string) error {
	return c.client.Del(ctx, viewKey(orderID)).Err()
}
