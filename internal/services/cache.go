package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

const (
	// ConversationsCachePrefix is the Redis key prefix for cached conversation lists
	ConversationsCachePrefix = "cache:conversations:"
	// ConversationsGenPrefix is the Redis key prefix for per-user invalidation counters
	ConversationsGenPrefix = "cache:conversations_gen:"
	// DefaultCacheTTL bounds staleness if an invalidation is ever lost
	DefaultCacheTTL = 10 * time.Minute
)

// ConversationCache caches a user's conversation list. Implementations must
// treat every failure as a miss: the message log stays the source of truth.
//
// Readers take a Version before querying the log and hand it back to Set, which
// drops the write if code was invalidated in between.
type ConversationCache interface {
	Get(ctx context.Context, code string) ([]models.ConversationSummary, bool)
	Version(ctx context.Context, code string) (int64, bool)
	Set(ctx context.Context, code string, version int64, list []models.ConversationSummary)
	Invalidate(ctx context.Context, codes ...string)
}

// RedisConversationCache stores conversation lists as JSON strings.
type RedisConversationCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisConversationCache(client *redis.Client, ttl time.Duration) *RedisConversationCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisConversationCache{client: client, ttl: ttl}
}

func (c *RedisConversationCache) Get(ctx context.Context, code string) ([]models.ConversationSummary, bool) {
	val, err := c.client.Get(ctx, ConversationsCachePrefix+code).Result()
	if err != nil {
		return nil, false
	}
	var list []models.ConversationSummary
	if err := json.Unmarshal([]byte(val), &list); err != nil {
		return nil, false
	}
	if list == nil {
		list = []models.ConversationSummary{}
	}
	return list, true
}

// Version returns the invalidation counter for code. ok is false when it
// cannot be read, and the caller must then skip Set.
func (c *RedisConversationCache) Version(ctx context.Context, code string) (int64, bool) {
	gen, err := c.client.Get(ctx, ConversationsGenPrefix+code).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		return 0, false
	}
	return gen, true
}

// Set stores list unless code was invalidated after version was read.
func (c *RedisConversationCache) Set(ctx context.Context, code string, version int64, list []models.ConversationSummary) {
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	genKey := ConversationsGenPrefix + code

	// A concurrent Invalidate touches genKey and aborts the EXEC.
	_ = c.client.Watch(ctx, func(tx *redis.Tx) error {
		gen, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if gen != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, ConversationsCachePrefix+code, data, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

// Invalidate drops the cached lists and bumps each counter so in-flight
// reads cannot write their older result back.
func (c *RedisConversationCache) Invalidate(ctx context.Context, codes ...string) {
	if len(codes) == 0 {
		return
	}
	_, _ = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, code := range codes {
			pipe.Incr(ctx, ConversationsGenPrefix+code)
			pipe.Del(ctx, ConversationsCachePrefix+code)
		}
		return nil
	})
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]models.ConversationSummary, bool) { return nil, false }
func (noopCache) Version(context.Context, string) (int64, bool)                  { return 0, false }
func (noopCache) Set(context.Context, string, int64, []models.ConversationSummary) {}
func (noopCache) Invalidate(context.Context, ...string)                          {}
