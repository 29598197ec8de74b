package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fixpal/backend/pkg/logger"
)

// Client caches assembled diagnosis results keyed by canonical query hash.
// Results are safe to share across sessions: they depend only on the query
// and the corpus snapshot.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetResult caches a diagnosis result under the query hash.
func (c *Client) SetResult(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, fmt.Sprintf("diagnosis:%s", key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set result cache: %w", err)
	}

	logger.Debug("Diagnosis cached", zap.String("query_hash", key), zap.Duration("ttl", ttl))
	return nil
}

// GetResult loads a cached diagnosis result. Returns false on miss.
func (c *Client) GetResult(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("diagnosis:%s", key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get result cache: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	logger.Debug("Diagnosis cache hit", zap.String("query_hash", key))
	return true, nil
}

// InvalidateResults drops every cached diagnosis. Called after a corpus
// change so stale plans never outlive the snapshot they were derived from.
func (c *Client) InvalidateResults(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "diagnosis:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Diagnosis cache invalidated")
	return nil
}
