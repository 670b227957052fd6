package fetch

import (
	"container/list"
	"sort"
	"strings"
	"time"
)

// cacheEntry is one cached response body.
type cacheEntry struct {
	key      string
	body     []byte
	storedAt time.Time
}

// responseCache is an LRU-bounded body cache shared by JSON and text fetches.
// Freshness uses the monotonic clock carried by storedAt.
type responseCache struct {
	ttl     time.Duration
	maxSize int
	order   *list.List               // front = most recently used
	entries map[string]*list.Element // key -> element holding *cacheEntry
}

func newResponseCache(ttl time.Duration, maxSize int) *responseCache {
	return &responseCache{
		ttl:     ttl,
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// get returns the cached body and whether it is still fresh.
// A stale entry is still returned (fresh=false) so callers can fall back
// to it on rate limits and transport failures.
func (c *responseCache) get(key string) (body []byte, fresh bool, found bool) {
	elem, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	c.order.MoveToFront(elem)
	entry := elem.Value.(*cacheEntry)
	return entry.body, time.Since(entry.storedAt) < c.ttl, true
}

// put stores a body, evicting the least recently used entry when full.
func (c *responseCache) put(key string, body []byte) {
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.body = body
		entry.storedAt = time.Now()
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{
		key:      key,
		body:     body,
		storedAt: time.Now(),
	})
}

// sweep removes entries older than the TTL and returns how many were evicted.
func (c *responseCache) sweep() int {
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*cacheEntry)
		if time.Since(entry.storedAt) >= c.ttl {
			c.order.Remove(elem)
			delete(c.entries, entry.key)
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *responseCache) len() int {
	return c.order.Len()
}

// cacheKey canonicalizes (url, params) so that equal requests share one entry
// regardless of caller parameter order.
func cacheKey(url string, params map[string]string) string {
	if len(params) == 0 {
		return url
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
