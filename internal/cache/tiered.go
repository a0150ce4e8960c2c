package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"portfolio/internal/cache/redis"
	"portfolio/internal/logger"
)

// Tiered chains the fast tiers in front of a loader: in-process memory
// first, then the optional Redis tier, then the caller's load function.
// A hit in a slower tier fills every faster tier on the way back.
type Tiered struct {
	Mem   *Memory
	Redis *redis.Client // nil disables the second tier
	log   *logger.Logger
	sf    singleflight.Group
}

// NewTiered wires the two cache tiers together. redisClient may be nil.
func NewTiered(mem *Memory, redisClient *redis.Client, log *logger.Logger) *Tiered {
	if log == nil {
		log = logger.NewNop()
	}
	return &Tiered{Mem: mem, Redis: redisClient, log: log}
}

// Fetch resolves key through the tier chain. Concurrent misses for the same
// key share one in-flight load; a load error is returned to every waiter and
// nothing is cached. Cache-tier faults are absorbed: the worst case is a
// straight call to load.
func Fetch[T any](ctx context.Context, t *Tiered, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := t.Mem.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		// Type drift between writers. Drop the entry and reload.
		t.Mem.Delete(key)
	}

	v, err, _ := t.sf.Do(key, func() (any, error) {
		if v, ok := t.Mem.Get(key); ok {
			return v, nil
		}
		if t.Redis != nil {
			var fromRedis T
			if t.Redis.Get(ctx, key, &fromRedis) {
				t.Mem.Set(key, fromRedis, ttl)
				return fromRedis, nil
			}
		}
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		t.Mem.Set(key, loaded, ttl)
		if t.Redis != nil {
			t.Redis.Set(ctx, key, loaded, ttl)
		}
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: unexpected type %T for key %q", v, key)
	}
	return typed, nil
}

// Invalidate removes every key in a family from both tiers. Called after
// writes so stale listings never outlive the data they describe.
func (t *Tiered) Invalidate(ctx context.Context, family string) {
	removed := t.Mem.DeleteByPattern(FamilyPattern(family))
	if t.Redis != nil {
		removed += t.Redis.DeletePattern(ctx, family+":*")
	}
	if removed > 0 {
		t.log.Debug("cache: invalidated family", zap.String("family", family), zap.Int("removed", removed))
	}
}

// Clear empties one or both tiers. target must be "memory", "redis", or
// "all"; anything else is an error and neither tier is touched.
func (t *Tiered) Clear(ctx context.Context, target string) error {
	switch target {
	case "memory":
		t.Mem.FlushAll()
	case "redis":
		if t.Redis != nil {
			t.Redis.FlushAll(ctx)
		}
	case "all":
		t.Mem.FlushAll()
		if t.Redis != nil {
			t.Redis.FlushAll(ctx)
		}
	default:
		return fmt.Errorf("cache: unknown clear target %q (want memory, redis, or all)", target)
	}
	return nil
}
