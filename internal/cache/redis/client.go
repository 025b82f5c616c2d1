package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/metrics"
	"github.com/aws-agent/console/pkg/logger"
	"github.com/aws-agent/console/pkg/utils"
)

const vocabularyPrefix = "vocabulary:"

// Client is the second-level store for tag vocabularies, shared across restarts.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func vocabularyKey(searchTerm string) string {
	return vocabularyPrefix + utils.HashKey("tagCounts", searchTerm)
}

func (c *Client) SetVocabulary(ctx context.Context, searchTerm string, vocabulary any) error {
	data, err := json.Marshal(vocabulary)
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}

	if err := c.client.Set(ctx, vocabularyKey(searchTerm), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set vocabulary cache: %w", err)
	}

	logger.Debug("Vocabulary cached", zap.String("search_term", searchTerm), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) GetVocabulary(ctx context.Context, searchTerm string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, vocabularyKey(searchTerm)).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("redis_vocabulary").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get vocabulary cache: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal vocabulary: %w", err)
	}

	metrics.CacheHits.WithLabelValues("redis_vocabulary").Inc()
	logger.Debug("Vocabulary cache hit", zap.String("search_term", searchTerm))
	return true, nil
}

// InvalidateVocabulary deletes every cached vocabulary.
func (c *Client) InvalidateVocabulary(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, vocabularyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Debug("Vocabulary cache invalidated", zap.Int("deleted", deleted))
	return nil
}
