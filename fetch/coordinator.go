// Package fetch coordinates calls to external providers. Results are
// cached per resource key with a TTL, concurrent callers for the same
// key share a single in-flight request, and provider failures reset
// the key to not-connected so the caller can offer a manual retry.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/daybridge/daybridge/internal/clock"
	"github.com/daybridge/daybridge/store"
)

// DefaultTTL is how long a completed fetch is served from cache.
const DefaultTTL = 30 * time.Second

// ErrNotConnected indicates the provider for a resource key is
// unreachable. The key holds no cached data until a fetch succeeds.
type ErrNotConnected struct {
	ResourceKey string
	Err         error
}

func (e *ErrNotConnected) Error() string {
	return fmt.Sprintf("fetch: %s not connected: %v", e.ResourceKey, e.Err)
}

func (e *ErrNotConnected) Unwrap() error { return e.Err }

// StateStore persists the last successful fetch per resource key.
type StateStore interface {
	UpsertFetchState(ctx context.Context, upsert *store.FetchState) (*store.FetchState, error)
	GetFetchState(ctx context.Context, resourceKey string) (*store.FetchState, error)
}

type cacheEntry struct {
	value     any
	count     int
	fetchedAt time.Time
}

// Coordinator deduplicates and caches provider fetches.
type Coordinator struct {
	store   StateStore
	clock   clock.Clock
	limiter *rate.Limiter
	group   singleflight.Group

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewCoordinator(stateStore StateStore, clk clock.Clock) *Coordinator {
	return &Coordinator{
		store: stateStore,
		clock: clk,
		// Providers are polled, not streamed. Two requests per second
		// with a small burst is plenty for every feed we talk to.
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		cache:   map[string]cacheEntry{},
	}
}

// Do fetches the resource identified by key. A cached result younger
// than ttl is returned as-is unless force is set. Concurrent callers
// for the same key block on one underlying loader call and share its
// result. On loader failure the key's cache is cleared and the error
// is wrapped as *ErrNotConnected.
func Do[T any](ctx context.Context, c *Coordinator, key string, ttl time.Duration, force bool, loader func(context.Context) ([]T, error)) ([]T, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if !force {
		if cached, ok := c.lookup(key, ttl); ok {
			return cached.value.([]T), nil
		}
	}

	value, err, shared := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have just
		// completed this key while we waited for the group lock.
		if !force {
			if cached, ok := c.lookup(key, ttl); ok {
				return cached.value, nil
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := loader(ctx)
		if err != nil {
			c.reset(key)
			return nil, &ErrNotConnected{ResourceKey: key, Err: err}
		}

		now := c.clock.Now()
		c.put(key, result, len(result), now)
		if _, err := c.store.UpsertFetchState(ctx, &store.FetchState{
			ResourceKey: key,
			LastFetchTs: now.Unix(),
			ResultCount: int32(len(result)),
		}); err != nil {
			slog.Warn("fetch: failed to persist fetch state", "key", key, "error", err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("fetch: shared in-flight result", "key", key)
	}
	return value.([]T), nil
}

func (c *Coordinator) lookup(key string, ttl time.Duration) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok {
		return cacheEntry{}, false
	}
	if c.clock.Now().Sub(entry.fetchedAt) >= ttl {
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *Coordinator) put(key string, value any, count int, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{value: value, count: count, fetchedAt: fetchedAt}
}

func (c *Coordinator) reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, key)
}

// Invalidate drops the cached result for key so the next Do call hits
// the provider. Used after a mutation lands on the underlying resource.
func (c *Coordinator) Invalidate(key string) {
	c.reset(key)
}

// Connected reports whether key currently holds cached data.
func (c *Coordinator) Connected(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[key]
	return ok
}

// LastFetch returns the persisted fetch state for key, or nil if the
// key has never completed a fetch.
func (c *Coordinator) LastFetch(ctx context.Context, key string) (*store.FetchState, error) {
	return c.store.GetFetchState(ctx, key)
}
