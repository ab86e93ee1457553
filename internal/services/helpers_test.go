package services

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/soconnect-backend/internal/logging"
	"github.com/AnshRaj112/soconnect-backend/internal/repository/repotest"
)

var fastRetry = ReadRetry{Base: time.Millisecond, MaxRetries: 3}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type fixture struct {
	store    *repotest.Store
	mr       *miniredis.Miniredis
	sessions *RedisSessionStore
	cache    *RedisConversationCache
	auth     *Authority
	log      *MessageLog
	index    *ConversationIndex
}

func newFixture(t *testing.T, opts ...MessageLogOption) *fixture {
	t.Helper()
	mr, client := newRedis(t)
	store := repotest.NewStore()
	sessions := NewRedisSessionStore(client)
	cache := NewRedisConversationCache(client, time.Minute)

	auth, err := NewAuthority(store.Users(), sessions, time.Hour, time.Second, logging.Discard())
	require.NoError(t, err)

	opts = append([]MessageLogOption{WithConversationCache(cache), WithReadRetry(fastRetry)}, opts...)
	index := NewConversationIndex(store.Messages(), cache, time.Second)
	index.retry = fastRetry

	return &fixture{
		store:    store,
		mr:       mr,
		sessions: sessions,
		cache:    cache,
		auth:     auth,
		log:      NewMessageLog(store.Messages(), time.Second, logging.Discard(), opts...),
		index:    index,
	}
}

func strPtr(s string) *string { return &s }
