package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CachePaymentToken stores the issued payment token payload for an order
func (c *Client) CachePaymentToken(ctx context.Context, orderID string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("snaptoken:%s", orderID), payload, ttl).Err()
}

// GetPaymentToken retrieves a cached payment token payload, nil if absent
// or expired
func (c *Client) GetPaymentToken(ctx context.Context, orderID string) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, fmt.Sprintf("snaptoken:%s", orderID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// SeenNotification reports whether a notification key was already recorded
func (c *Client) SeenNotification(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf("notif:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RememberNotification records a delivered notification key. Callers record
// only after the order transition committed, so a failed delivery stays
// retryable; concurrent duplicates that slip past the check are absorbed by
// the conditional status update.
func (c *Client) RememberNotification(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("notif:%s", key), "1", ttl).Err()
}
