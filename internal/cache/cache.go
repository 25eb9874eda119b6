// Package cache memoizes ranked retrieval results keyed by query
// fingerprint. It layers a small in-process LRU over Redis: the LRU bounds
// memory and absorbs hot repeats, Redis shares entries across instances.
// Eviction and expiry both surface as a plain miss; callers cannot and must
// not distinguish them.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"islamic-qa-platform/internal/logger"
	"islamic-qa-platform/models"
)

const redisKeyPrefix = "qacache:"

type entry struct {
	key       string
	result    *models.RankedResult
	expiresAt time.Time
}

// ResponseCache is safe for concurrent use. The Redis client may be nil, in
// which case only the in-process layer operates.
type ResponseCache struct {
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int

	mu    sync.Mutex
	ll    *list.List
	byKey map[string]*list.Element

	hits   atomic.Int64
	misses atomic.Int64
}

func NewResponseCache(rdb *redis.Client, ttl time.Duration, maxEntries int) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &ResponseCache{
		rdb:        rdb,
		ttl:        ttl,
		maxEntries: maxEntries,
		ll:         list.New(),
		byKey:      make(map[string]*list.Element),
	}
}

// Get returns the cached result for fingerprint, or ok=false on a miss.
func (c *ResponseCache) Get(ctx context.Context, fingerprint string) (*models.RankedResult, bool) {
	if result, ok := c.getLocal(fingerprint); ok {
		c.hits.Add(1)
		return result, true
	}

	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, redisKeyPrefix+fingerprint).Bytes()
		if err == nil {
			var result models.RankedResult
			if jsonErr := json.Unmarshal(raw, &result); jsonErr == nil {
				c.putLocal(fingerprint, &result)
				c.hits.Add(1)
				return &result, true
			}
		} else if err != redis.Nil {
			logger.Debug("response cache redis get failed", "error", err)
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Put stores a result under fingerprint with the configured TTL.
func (c *ResponseCache) Put(ctx context.Context, fingerprint string, result *models.RankedResult) {
	c.putLocal(fingerprint, result)

	if c.rdb != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return
		}
		if err := c.rdb.Set(ctx, redisKeyPrefix+fingerprint, raw, c.ttl).Err(); err != nil {
			logger.Debug("response cache redis set failed", "error", err)
		}
	}
}

// Invalidate drops a single fingerprint from both layers.
func (c *ResponseCache) Invalidate(ctx context.Context, fingerprint string) {
	c.mu.Lock()
	if el, ok := c.byKey[fingerprint]; ok {
		c.removeLocked(el)
	}
	c.mu.Unlock()

	if c.rdb != nil {
		if err := c.rdb.Del(ctx, redisKeyPrefix+fingerprint).Err(); err != nil {
			logger.Debug("response cache redis del failed", "error", err)
		}
	}
}

// Flush empties both layers. Used after a full reindex, when every cached
// ranking is potentially stale; leaving Redis entries behind would let Get
// repopulate the LRU with pre-rebuild rankings.
func (c *ResponseCache) Flush(ctx context.Context) {
	c.mu.Lock()
	c.ll.Init()
	c.byKey = make(map[string]*list.Element)
	c.mu.Unlock()

	if c.rdb != nil {
		iter := c.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				logger.Debug("response cache redis del failed", "error", err)
			}
		}
		if err := iter.Err(); err != nil {
			logger.Debug("response cache redis scan failed", "error", err)
		}
	}
}

// HitRate returns the fraction of lookups served from cache since start.
func (c *ResponseCache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (c *ResponseCache) getLocal(key string) (*models.RankedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[key]
	if !ok {
		return nil, false
	}
	en := el.Value.(*entry)
	if time.Now().After(en.expiresAt) {
		c.removeLocked(el)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return en.result, true
}

func (c *ResponseCache) putLocal(key string, result *models.RankedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[key]; ok {
		en := el.Value.(*entry)
		en.result = result
		en.expiresAt = time.Now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry{key: key, result: result, expiresAt: time.Now().Add(c.ttl)})
	c.byKey[key] = el

	for c.ll.Len() > c.maxEntries {
		c.removeLocked(c.ll.Back())
	}
}

func (c *ResponseCache) removeLocked(el *list.Element) {
	c.ll.Remove(el)
	delete(c.byKey, el.Value.(*entry).key)
}
