// Package cache keeps a Redis mirror of tracked refresh sessions so that the
// refresh path can reject revoked tokens without a database round trip.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrEmptyURL is returned by NewRedisCache when no URL is configured.
var ErrEmptyURL = errors.New("cache: empty redis url")

// SessionEntry is what is stored per session hash.
type SessionEntry struct {
	UserID    uuid.UUID
	Revoked   bool
	ExpiresAt time.Time
}

// SessionCache is the minimal contract of the session cache.
type SessionCache interface {
	// Get returns the entry and whether it was present.
	Get(ctx context.Context, hash string) (*SessionEntry, bool, error)
	// Set stores the entry for ttl.
	Set(ctx context.Context, hash string, e *SessionEntry, ttl time.Duration) error
	// MarkRevoked flips rev=1 keeping the remaining TTL.
	MarkRevoked(ctx context.Context, hash string) error
	// Close closes the client.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache connects to redisURL (redis://:pass@host:6379/0) and pings it.
// An empty prefix defaults to "auth:rt:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (SessionCache, error) {
	const op = "cache.NewRedisCache"

	if redisURL == "" {
		return nil, ErrEmptyURL
	}

	if prefix == "" {
		prefix = "auth:rt:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(hash string) string { return c.prefix + hash }

// Stored as a Redis hash with fields uid, rev (0/1), exp (unix seconds).
func (c *redisCache) Get(ctx context.Context, hash string) (*SessionEntry, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(hash)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	uid, err := uuid.Parse(m["uid"])
	if err != nil {
		return nil, false, err
	}

	expUnix, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, false, err
	}

	return &SessionEntry{
		UserID:    uid,
		Revoked:   m["rev"] == "1",
		ExpiresAt: time.Unix(expUnix, 0).UTC(),
	}, true, nil
}

func (c *redisCache) Set(ctx context.Context, hash string, e *SessionEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	kv := map[string]string{
		"uid": e.UserID.String(),
		"rev": boolTo01(e.Revoked),
		"exp": strconv.FormatInt(e.ExpiresAt.Unix(), 10),
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(hash), kv)
	pipe.Expire(ctx, c.key(hash), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// MarkRevoked only touches existing keys so that no TTL-less entry is created.
func (c *redisCache) MarkRevoked(ctx context.Context, hash string) error {
	n, err := c.rdb.Exists(ctx, c.key(hash)).Result()
	if err != nil || n == 0 {
		return err
	}

	return c.rdb.HSet(ctx, c.key(hash), "rev", "1").Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func boolTo01(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
