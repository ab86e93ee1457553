package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

const (
	// SessionKeyPrefix is the Redis key prefix for token -> user code
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user code -> token
	UserSessionKeyPrefix = "user_session:"

	maxWatchRetries = 10
)

// SessionStore maps opaque session tokens to user codes.
type SessionStore interface {
	// Create issues a new token for code, revoking any token the user already holds.
	Create(ctx context.Context, code string, ttl time.Duration) (string, error)
	// Lookup resolves a token. Unknown or expired tokens yield models.ErrUnauthenticated.
	Lookup(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
	RevokeUser(ctx context.Context, code string) error
}

// RedisSessionStore keeps one live session per user in Redis.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Create swaps the user's reverse mapping to a fresh token and deletes the
// previous session in the same transaction, so concurrent logins leave exactly
// one live token.
func (s *RedisSessionStore) Create(ctx context.Context, code string, ttl time.Duration) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	userSessionKey := UserSessionKeyPrefix + code

	err = s.watch(ctx, func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, userSessionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != "" {
				pipe.Del(ctx, SessionKeyPrefix+old)
			}
			pipe.Set(ctx, SessionKeyPrefix+token, code, ttl)
			pipe.Set(ctx, userSessionKey, token, ttl)
			return nil
		})
		return err
	}, userSessionKey)
	if err != nil {
		return "", fmt.Errorf("store session: %w: %w", models.ErrTransient, err)
	}
	return token, nil
}

func (s *RedisSessionStore) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", models.ErrUnauthenticated
	}
	code, err := s.client.Get(ctx, SessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", models.ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w: %w", models.ErrTransient, err)
	}
	return code, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sessionKey := SessionKeyPrefix + token

	code, err := s.client.Get(ctx, sessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke session: %w: %w", models.ErrTransient, err)
	}
	userSessionKey := UserSessionKeyPrefix + code

	err = s.watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, userSessionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, sessionKey)
			// A newer login owns the reverse mapping; leave it alone.
			if current == token {
				pipe.Del(ctx, userSessionKey)
			}
			return nil
		})
		return err
	}, userSessionKey)
	if err != nil {
		return fmt.Errorf("revoke session: %w: %w", models.ErrTransient, err)
	}
	return nil
}

func (s *RedisSessionStore) RevokeUser(ctx context.Context, code string) error {
	userSessionKey := UserSessionKeyPrefix + code

	err := s.watch(ctx, func(tx *redis.Tx) error {
		token, err := tx.Get(ctx, userSessionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, userSessionKey)
			if token != "" {
				pipe.Del(ctx, SessionKeyPrefix+token)
			}
			return nil
		})
		return err
	}, userSessionKey)
	if err != nil {
		return fmt.Errorf("revoke user sessions: %w: %w", models.ErrTransient, err)
	}
	return nil
}

// watch runs fn as an optimistic transaction on keys, retrying when another
// client changed them before EXEC.
func (s *RedisSessionStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return errors.New("session update contended, giving up")
}

func newSessionToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}
