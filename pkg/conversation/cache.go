package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"support-assistant/pkg/metrics"
	"support-assistant/pkg/models"
)

// Cache holds the context window of recently active conversations. A miss
// means the caller rebuilds the window from the persistent store.
type Cache interface {
	Get(ctx context.Context, conversationID string) ([]models.Turn, bool, error)
	Store(ctx context.Context, conversationID string, turns []models.Turn) error
	Append(ctx context.Context, conversationID string, turns ...models.Turn) error
	Invalidate(ctx context.Context, conversationID string) error
}

// LRUCache is the in-process cache used when no Redis is configured
type LRUCache struct {
	mu       sync.Mutex
	lru      *expirable.LRU[string, []models.Turn]
	capacity int
	metrics  *metrics.Metrics
}

func NewLRUCache(size int, ttl time.Duration, windowCapacity int, m *metrics.Metrics) *LRUCache {
	return &LRUCache{
		lru:      expirable.NewLRU[string, []models.Turn](size, nil, ttl),
		capacity: windowCapacity,
		metrics:  m,
	}
}

func (c *LRUCache) Get(_ context.Context, conversationID string) ([]models.Turn, bool, error) {
	turns, ok := c.lru.Get(conversationID)
	c.observe(ok)
	if !ok {
		return nil, false, nil
	}
	return NewWindow(c.capacity, turns...).Turns(), true, nil
}

func (c *LRUCache) Store(_ context.Context, conversationID string, turns []models.Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(conversationID, NewWindow(c.capacity, turns...).Turns())
	return nil
}

// Append pushes turns onto a cached window. Appending to an absent entry starts a new window.
func (c *LRUCache) Append(_ context.Context, conversationID string, turns ...models.Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, _ := c.lru.Get(conversationID)
	window := NewWindow(c.capacity, existing...)
	window.Push(turns...)
	c.lru.Add(conversationID, window.Turns())
	return nil
}

// Invalidate drops the cached window so the next lookup misses
func (c *LRUCache) Invalidate(_ context.Context, conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(conversationID)
	return nil
}

func (c *LRUCache) Len() int {
	return c.lru.Len()
}

func (c *LRUCache) observe(hit bool) {
	if c.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.metrics.ContextCacheLookups.WithLabelValues(result).Inc()
}
