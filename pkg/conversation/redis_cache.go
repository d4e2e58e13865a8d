package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"support-assistant/pkg/constants"
	"support-assistant/pkg/metrics"
	"support-assistant/pkg/models"
)

// RedisCache keeps each context window as a JSON-encoded Redis list so that
// every replica sees the same recent turns.
type RedisCache struct {
	rdb      *redis.Client
	capacity int
	ttl      time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

func NewRedisCache(rdb *redis.Client, windowCapacity int, ttl time.Duration, logger *logrus.Logger, m *metrics.Metrics) *RedisCache {
	return &RedisCache{
		rdb:      rdb,
		capacity: windowCapacity,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
	}
}

func contextKey(conversationID string) string {
	return constants.ContextKeyPrefix + conversationID
}

func (c *RedisCache) Get(ctx context.Context, conversationID string) ([]models.Turn, bool, error) {
	start := time.Now()
	defer func() {
		c.metrics.RedisOperationDuration.WithLabelValues("context_get").Observe(time.Since(start).Seconds())
	}()

	raw, err := c.rdb.LRange(ctx, contextKey(conversationID), int64(-c.capacity), -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read context window: %w", err)
	}
	if len(raw) == 0 {
		c.metrics.ContextCacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			// A corrupt entry is treated as a miss; the window is rebuilt from the store
			c.logger.WithError(err).WithField("conversation_id", conversationID).Warn("Discarding unreadable context window")
			c.metrics.ContextCacheLookups.WithLabelValues("miss").Inc()
			return nil, false, nil
		}
		turns = append(turns, turn)
	}

	c.metrics.ContextCacheLookups.WithLabelValues("hit").Inc()
	return turns, true, nil
}

// Store replaces the cached window
func (c *RedisCache) Store(ctx context.Context, conversationID string, turns []models.Turn) error {
	start := time.Now()
	defer func() {
		c.metrics.RedisOperationDuration.WithLabelValues("context_store").Observe(time.Since(start).Seconds())
	}()

	values, err := encodeTurns(turns)
	if err != nil {
		return err
	}

	key := contextKey(conversationID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-c.capacity), -1)
		pipe.Expire(ctx, key, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to store context window")
		return fmt.Errorf("failed to store context window: %w", err)
	}
	return nil
}

// Append pushes turns and trims the list to the window capacity in one round trip
func (c *RedisCache) Append(ctx context.Context, conversationID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		c.metrics.RedisOperationDuration.WithLabelValues("context_append").Observe(time.Since(start).Seconds())
	}()

	values, err := encodeTurns(turns)
	if err != nil {
		return err
	}

	key := contextKey(conversationID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-c.capacity), -1)
	pipe.Expire(ctx, key, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to append to context window")
		return fmt.Errorf("failed to append to context window: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"turns":           len(turns),
	}).Debug("Appended turns to context window")

	return nil
}

// Invalidate deletes the cached window so the next lookup rebuilds it from the store
func (c *RedisCache) Invalidate(ctx context.Context, conversationID string) error {
	start := time.Now()
	defer func() {
		c.metrics.RedisOperationDuration.WithLabelValues("context_invalidate").Observe(time.Since(start).Seconds())
	}()

	if err := c.rdb.Del(ctx, contextKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate context window: %w", err)
	}
	return nil
}

func encodeTurns(turns []models.Turn) ([]interface{}, error) {
	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return nil, fmt.Errorf("failed to encode turn: %w", err)
		}
		values = append(values, string(data))
	}
	return values, nil
}
