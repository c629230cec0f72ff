package goals

import (
	"sync"
	"time"
)

// historyCache keeps recent History pages per owner. Any write by the
// owner drops their entry and bumps their generation, so a page loaded
// before the write is never stored after it.
type historyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int]cacheEntry
	gens    map[int]uint64
}

type cacheEntry struct {
	limit    int
	sessions []GoalSession
	expires  time.Time
}

func newHistoryCache(ttl time.Duration) *historyCache {
	return &historyCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int]cacheEntry),
		gens:    make(map[int]uint64),
	}
}

func (c *historyCache) get(owner, limit int) ([]GoalSession, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[owner]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, owner)
		return nil, false
	}
	if e.limit != limit {
		return nil, false
	}
	return e.sessions, true
}

// generation must be read before loading the page handed to put.
func (c *historyCache) generation(owner int) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[owner]
}

// put stores the page unless the owner wrote since gen was read.
func (c *historyCache) put(owner int, gen uint64, limit int, sessions []GoalSession) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[owner] != gen {
		return
	}
	c.entries[owner] = cacheEntry{limit: limit, sessions: sessions, expires: c.now().Add(c.ttl)}
}

func (c *historyCache) invalidate(owner int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, owner)
	c.gens[owner]++
}
