// Package cache stores composed feed pages for a bounded time.
package cache

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

// sweepInterval bounds how long expired entries for keys nobody reads again
// stay in the map.
const sweepInterval = time.Minute

// entry is immutable once stored; Put swaps the pointer.
type entry struct {
	page    domain.Page
	created time.Time
	ttl     time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.created.Add(e.ttl))
}

// MemoryPageCache is a process-local page cache. Expired entries are evicted
// when a Get runs into them, and swept by Put at most once per sweepInterval
// or whenever the cache is full.
type MemoryPageCache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	now        func() time.Time
	maxEntries int
	lastSweep  time.Time
}

type MemoryOption func(*MemoryPageCache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryPageCache) { c.now = now }
}

// WithMaxEntries bounds the cache. When full, Put first sweeps expired entries;
// if that frees nothing the new key is not stored and the feed is served
// uncached.
func WithMaxEntries(n int) MemoryOption {
	return func(c *MemoryPageCache) { c.maxEntries = n }
}

func NewMemoryPageCache(opts ...MemoryOption) *MemoryPageCache {
	c := &MemoryPageCache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ ports.PageCache = (*MemoryPageCache)(nil)

func (c *MemoryPageCache) Get(_ context.Context, key string) (domain.Page, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return domain.Page{}, false
	}

	if e.expired(c.now()) {
		c.mu.Lock()
		// A concurrent Put may already have replaced the stale entry.
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return domain.Page{}, false
	}

	page := e.page
	page.Items = slices.Clone(e.page.Items)
	return page, true
}

func (c *MemoryPageCache) Put(_ context.Context, key string, page domain.Page, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	now := c.now()
	stored := page
	stored.Items = slices.Clone(page.Items)
	e := &entry{page: stored, created: now, ttl: ttl}

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweepLocked(now)
	}
	if _, exists := c.entries[key]; !exists && c.full() {
		c.sweepLocked(now)
		if c.full() {
			slog.Warn("Page cache full, serving uncached", "key", key, "max_entries", c.maxEntries)
			return
		}
	}
	c.entries[key] = e
}

func (c *MemoryPageCache) full() bool {
	return c.maxEntries > 0 && len(c.entries) >= c.maxEntries
}

// sweepLocked drops every expired entry. c.mu must be held for writing.
func (c *MemoryPageCache) sweepLocked(now time.Time) {
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
	c.lastSweep = now
}

func (c *MemoryPageCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *MemoryPageCache) ClearPrefix(_ context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryPageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
