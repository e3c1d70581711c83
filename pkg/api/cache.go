package api

import (
	"context"
	"time"
)

// cacheLookup asks the owning goroutine for a cached response.
type cacheLookup struct {
	key   string
	reply chan []byte // nil means miss
}

// cacheStore publishes freshly computed bytes.
type cacheStore struct {
	key  string
	data []byte
}

// cacheEntry records cached bytes with their expiry. Stale entries are
// trimmed lazily on lookup, which avoids running timers for a cache
// whose whole dataset fits in a few pages.
type cacheEntry struct {
	data    []byte
	expires time.Time
}

// ResponseCache keeps rendered API responses in memory so identical
// requests within the TTL skip the database. One goroutine owns the map,
// honouring the no-mutex rule of the rest of the codebase.
//
// Concurrent misses on the same key may each run the loader; the last
// store wins. For responses this cheap that duplication is preferable to
// a per-key locking scheme.
type ResponseCache struct {
	ttl     time.Duration
	lookups chan cacheLookup
	stores  chan cacheStore
	quit    chan struct{}
	now     func() time.Time // injectable for tests
}

// NewResponseCache starts the cache goroutine. A non-positive TTL
// returns nil, which disables caching: all methods are nil-safe.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		return nil
	}
	c := &ResponseCache{
		ttl:     ttl,
		lookups: make(chan cacheLookup),
		stores:  make(chan cacheStore),
		quit:    make(chan struct{}),
		now:     time.Now,
	}
	go c.loop()
	return c
}

// Close stops the cache goroutine. Safe to call more than once.
func (c *ResponseCache) Close() {
	if c == nil {
		return
	}
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
}

// Fetch returns cached bytes for key, or runs loader and caches its
// result. Loader errors are returned verbatim and never cached.
func (c *ResponseCache) Fetch(ctx context.Context, key string, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil {
		return loader(ctx)
	}

	reply := make(chan []byte, 1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.quit:
		return loader(ctx)
	case c.lookups <- cacheLookup{key: key, reply: reply}:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data := <-reply:
		if data != nil {
			return data, nil
		}
	}

	data, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case <-c.quit:
	case c.stores <- cacheStore{key: key, data: data}:
	}
	return data, nil
}

func (c *ResponseCache) loop() {
	entries := make(map[string]cacheEntry)
	for {
		select {
		case <-c.quit:
			return
		case lookup := <-c.lookups:
			entry, ok := entries[lookup.key]
			if ok && c.now().Before(entry.expires) {
				lookup.reply <- entry.data
				continue
			}
			if ok {
				delete(entries, lookup.key)
			}
			lookup.reply <- nil
		case store := <-c.stores:
			entries[store.key] = cacheEntry{
				data:    store.data,
				expires: c.now().Add(c.ttl),
			}
		}
	}
}
