// Package redis stores retrieval pools in Redis so reweights work across
// service instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
)

const defaultKeyPrefix = "wpai:retrieval:pool:"

var tracer = otel.Tracer("redis.pool_cache")

// commands is the subset of redis.Cmdable the cache needs.
type commands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type PoolCache struct {
	rdb       commands
	keyPrefix string
	ttl       time.Duration
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// NewPoolCache stores pools under keyPrefix+id with ttl. A zero ttl keeps
// pools until Redis evicts them.
func NewPoolCache(rdb redis.Cmdable, keyPrefix string, ttl time.Duration) *PoolCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &PoolCache{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *PoolCache) Store(ctx context.Context, pool *domain.RetrievalPool) error {
	if pool == nil || pool.RetrievalID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "store pool", errors.New("retrieval id is required"))
	}
	ctx, span := tracer.Start(ctx, "pool_cache.Store",
		trace.WithAttributes(attribute.String("retrieval.id", pool.RetrievalID)))
	defer span.End()

	payload, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("encode pool: %w", err)
	}

	created, err := c.rdb.SetNX(ctx, c.key(pool.RetrievalID), payload, c.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return domain.WrapError(domain.ErrTemporary, "store pool", err)
	}
	if !created {
		return domain.WrapError(domain.ErrCacheConflict, "store pool", errors.New(pool.RetrievalID))
	}
	return nil
}

func (c *PoolCache) Load(ctx context.Context, retrievalID string) (*domain.RetrievalPool, error) {
	ctx, span := tracer.Start(ctx, "pool_cache.Load",
		trace.WithAttributes(attribute.String("retrieval.id", retrievalID)))
	defer span.End()

	raw, err := c.rdb.Get(ctx, c.key(retrievalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, domain.WrapError(domain.ErrPoolNotFound, "load pool", errors.New(retrievalID))
		}
		span.RecordError(err)
		return nil, domain.WrapError(domain.ErrTemporary, "load pool", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))

	var pool domain.RetrievalPool
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, fmt.Errorf("decode pool %s: %w", retrievalID, err)
	}
	return &pool, nil
}

func (c *PoolCache) key(retrievalID string) string {
	return c.keyPrefix + retrievalID
}
