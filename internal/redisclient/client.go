package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

// ErrStockNotLoaded is returned when a location's stock counter has not
// been synced to Redis; callers fall back to the database.
var ErrStockNotLoaded = fmt.Errorf("location stock not loaded in redis")

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(locationID int64) string {
	return fmt.Sprintf("stock:location:%d", locationID)
}

// ReserveStock atomically takes one unit of stock for a location.
// Unlimited stock (-1) always succeeds without decrementing.
// Returns false when the location is out of stock.
func (c *Client) ReserveStock(ctx context.Context, locationID int64) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{stockKey(locationID)}).Result()
	if err != nil {
		return false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	switch code {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, ErrStockNotLoaded
	}
}

// ReleaseStock atomically returns one unit of stock (compensation after a
// failed remote create).
func (c *Client) ReleaseStock(ctx context.Context, locationID int64) error {
	result, err := c.releaseScript.Run(ctx, c.rdb, []string{stockKey(locationID)}).Result()
	if err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}

	if code, ok := result.(int64); ok && code == -2 {
		return ErrStockNotLoaded
	}
	return nil
}

// InitStock seeds a location's stock counter in Redis
func (c *Client) InitStock(ctx context.Context, locationID int64, stock int) error {
	return c.rdb.Set(ctx, stockKey(locationID), stock, 0).Err()
}

// GetStock retrieves the current stock counter for a location
func (c *Client) GetStock(ctx context.Context, locationID int64) (int, error) {
	val, err := c.rdb.Get(ctx, stockKey(locationID)).Int()
	if err == redis.Nil {
		return 0, ErrStockNotLoaded
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// AcquireLock acquires a short-lived lock keyed per order, used to keep
// concurrent lifecycle calls for the same order from interleaving.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
