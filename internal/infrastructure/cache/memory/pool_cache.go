// Package memory keeps retrieval pools in a bounded in-process LRU.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

const DefaultCapacity = 10000

type PoolCache struct {
	mu    sync.Mutex
	pools *expirable.LRU[string, *domain.RetrievalPool]
}

// NewPoolCache keeps at most capacity pools, each for ttl. A non-positive ttl
// disables expiry.
func NewPoolCache(capacity int, ttl time.Duration) *PoolCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PoolCache{
		pools: expirable.NewLRU[string, *domain.RetrievalPool](capacity, nil, ttl),
	}
}

// Store is write-once: a live pool under the same id is never replaced.
func (c *PoolCache) Store(_ context.Context, pool *domain.RetrievalPool) error {
	if pool == nil || pool.RetrievalID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "store pool", errors.New("retrieval id is required"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pools.Peek(pool.RetrievalID); ok {
		return domain.WrapError(domain.ErrCacheConflict, "store pool", errors.New(pool.RetrievalID))
	}
	c.pools.Add(pool.RetrievalID, pool.Clone())
	return nil
}

func (c *PoolCache) Load(_ context.Context, retrievalID string) (*domain.RetrievalPool, error) {
	pool, ok := c.pools.Get(retrievalID)
	if !ok {
		return nil, domain.WrapError(domain.ErrPoolNotFound, "load pool", errors.New(retrievalID))
	}
	return pool.Clone(), nil
}

func (c *PoolCache) Len() int {
	return c.pools.Len()
}
