package cache

import (
	"context"
	"sync"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
)

// DefaultExpiration is how long a fetched feed stays fresh
const DefaultExpiration = time.Hour

// CacheEntry represents a cached raw feed with the time it was stored
type CacheEntry struct {
	Body      []byte
	Timestamp time.Time
}

// FeedCache provides a thread-safe in-memory cache of raw feed bodies keyed by URL
type FeedCache struct {
	cache      map[string]CacheEntry
	expiration time.Duration
	now        func() time.Time
	mutex      sync.RWMutex
}

// NewFeedCache creates a new feed cache. A non-positive ttl uses DefaultExpiration.
func NewFeedCache(ttl time.Duration) *FeedCache {
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	return &FeedCache{
		cache:      make(map[string]CacheEntry),
		expiration: ttl,
		now:        time.Now,
	}
}

// Get retrieves a feed body from the cache if available and not expired
func (c *FeedCache) Get(url string) ([]byte, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[url]
	if !exists || c.now().Sub(entry.Timestamp) > c.expiration {
		return nil, false
	}

	return entry.Body, true
}

// Put stores a feed body in the cache
func (c *FeedCache) Put(url string, body []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[url] = CacheEntry{
		Body:      body,
		Timestamp: c.now(),
	}
}

// Size returns the number of items in the cache
func (c *FeedCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.cache)
}

// CleanExpired removes expired entries from the cache
func (c *FeedCache) CleanExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := 0
	now := c.now()

	for key, entry := range c.cache {
		if now.Sub(entry.Timestamp) > c.expiration {
			delete(c.cache, key)
			count++
		}
	}

	return count
}

// RunSweeper removes expired entries every interval until ctx is done
func (c *FeedCache) RunSweeper(ctx context.Context, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		interval = c.expiration
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.CleanExpired(); removed > 0 {
				log.Debug("Expired feed cache entries removed", map[string]interface{}{
					"removed":   removed,
					"remaining": c.Size(),
				})
			}
		}
	}
}
