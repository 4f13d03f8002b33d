// Package cache is a small JSON read-through cache on Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	pkglogger "github.com/damoang/angple-forum/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// TTLCategories 카테고리/게시판 목록 (카운터 포함, 자주 갱신)
const TTLCategories = 30 * time.Second

// loadTimeout bounds a shared fill once it no longer follows the caller's context
const loadTimeout = 10 * time.Second

// keyVersion is bumped when a cached payload changes shape
const keyVersion = "v1"

// KeyCategories caches the forum index
var KeyCategories = Key("categories")

// Key builds a namespaced cache key, e.g. forum:v1:categories
func Key(parts ...string) string {
	return "forum:" + keyVersion + ":" + strings.Join(parts, ":")
}

// Service stores JSON values by key. Implementations treat an unreachable
// backend as an empty cache.
type Service interface {
	Load(ctx context.Context, key string, dest interface{}) (bool, error)
	Store(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type redisCache struct {
	client *redis.Client
}

// NewService returns a Redis-backed Service; client may be nil
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// 깨진 값은 지우고 miss 처리
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *redisCache) Store(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Remember returns the value cached under key, or runs load once per key
// across concurrent callers and caches its result. svc may be nil. Cache
// failures are logged and never fail the call.
func Remember[T any](ctx context.Context, svc Service, group *singleflight.Group, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if svc != nil {
		hit, err := svc.Load(ctx, key, &cached)
		if err != nil {
			warn(err).Str("key", key).Msg("cache read failed")
		}
		if hit {
			return cached, nil
		}
	}

	// 공유 로드는 첫 호출자의 취소와 분리
	v, err, _ := group.Do(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		value, err := load(loadCtx)
		if err != nil {
			return value, err
		}
		if svc != nil {
			if err := svc.Store(loadCtx, key, value, ttl); err != nil {
				warn(err).Str("key", key).Msg("cache write failed")
			}
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Forget invalidates keys, logging instead of failing
func Forget(ctx context.Context, svc Service, keys ...string) {
	if svc == nil {
		return
	}
	if err := svc.Invalidate(ctx, keys...); err != nil {
		warn(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

func warn(err error) *zerolog.Event {
	l := pkglogger.WithComponent("cache")
	return l.Warn().Err(err)
}
