package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/paginator"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func samplePage(ids ...int64) domain.Page {
	posts := make([]domain.Post, len(ids))
	for i, id := range ids {
		posts[i] = domain.Post{ID: id, AuthorID: 1, Author: "leo", Text: fmt.Sprintf("post %d", id)}
	}
	return paginator.Paginate(posts, 10, 1)
}

func TestMemoryPageCacheHitReturnsStoredPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryPageCache(WithClock(clock.Now))

	want := samplePage(3, 1)
	c.Put(ctx, "feed:global:page:1", want, 20*time.Second)

	for i := 0; i < 2; i++ {
		got, ok := c.Get(ctx, "feed:global:page:1")
		if !ok {
			t.Fatalf("Get() #%d missed", i)
		}
		if got.TotalItems != want.TotalItems || len(got.Items) != 2 || got.Items[0].ID != 3 || got.Items[1].ID != 1 {
			t.Fatalf("Get() #%d = %+v, want %+v", i, got, want)
		}
	}
}

func TestMemoryPageCacheExpiryBoundary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryPageCache(WithClock(clock.Now))

	c.Put(ctx, "k", samplePage(1), 20*time.Second)

	clock.Advance(20 * time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry expired at exactly created+ttl")
	}

	clock.Advance(time.Nanosecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry still served after created+ttl")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not evicted, Len() = %d", c.Len())
	}
}

func TestMemoryPageCacheNonPositiveTTLIsNotStored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryPageCache()

	c.Put(ctx, "zero", samplePage(1), 0)
	c.Put(ctx, "negative", samplePage(1), -time.Second)

	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryPageCachePutOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryPageCache(WithClock(clock.Now))

	c.Put(ctx, "k", samplePage(1), 10*time.Second)
	clock.Advance(8 * time.Second)
	c.Put(ctx, "k", samplePage(2), 10*time.Second)
	clock.Advance(8 * time.Second)

	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("overwritten entry expired with the old timestamp")
	}
	if got.Items[0].ID != 2 {
		t.Fatalf("Get() served post %d, want 2", got.Items[0].ID)
	}
}

func TestMemoryPageCacheClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryPageCache()

	c.Put(ctx, "a", samplePage(1), time.Minute)
	c.Put(ctx, "b", samplePage(2), time.Minute)
	c.Clear(ctx)

	for _, key := range []string{"a", "b"} {
		if _, ok := c.Get(ctx, key); ok {
			t.Fatalf("Get(%q) hit after Clear", key)
		}
	}
}

func TestMemoryPageCacheClearIsolatesInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	first := NewMemoryPageCache()
	second := NewMemoryPageCache()

	first.Put(ctx, "k", samplePage(1), time.Minute)
	second.Put(ctx, "k", samplePage(1), time.Minute)
	first.Clear(ctx)

	if _, ok := second.Get(ctx, "k"); !ok {
		t.Fatal("Clear on one cache emptied another")
	}
}

func TestMemoryPageCacheClearPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryPageCache()

	viewer1 := domain.FollowFeed(1)
	viewer12 := domain.FollowFeed(12)

	c.Put(ctx, viewer1.PageKey(1), samplePage(1), time.Minute)
	c.Put(ctx, viewer1.PageKey(2), samplePage(2), time.Minute)
	c.Put(ctx, viewer12.PageKey(1), samplePage(3), time.Minute)
	c.Put(ctx, domain.GlobalFeed().PageKey(1), samplePage(4), time.Minute)

	c.ClearPrefix(ctx, viewer1.PagePrefix())

	tests := []struct {
		key  string
		want bool
	}{
		{key: viewer1.PageKey(1), want: false},
		{key: viewer1.PageKey(2), want: false},
		{key: viewer12.PageKey(1), want: true},
		{key: domain.GlobalFeed().PageKey(1), want: true},
	}
	for _, testCase := range tests {
		if _, ok := c.Get(ctx, testCase.key); ok != testCase.want {
			t.Fatalf("Get(%q) hit = %v, want %v", testCase.key, ok, testCase.want)
		}
	}
}

func TestMemoryPageCacheMaxEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryPageCache(WithMaxEntries(1))

	c.Put(ctx, "a", samplePage(1), time.Minute)
	c.Put(ctx, "b", samplePage(2), time.Minute)
	c.Put(ctx, "a", samplePage(3), time.Minute)

	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatal("full cache accepted a new key")
	}
	got, ok := c.Get(ctx, "a")
	if !ok || got.Items[0].ID != 3 {
		t.Fatalf("existing key not overwritten in a full cache: %+v, %v", got, ok)
	}
}

func TestMemoryPageCacheFullSweepsExpiredEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryPageCache(WithClock(clock.Now), WithMaxEntries(2))

	c.Put(ctx, "feed:global:page:900", samplePage(1), time.Second)
	c.Put(ctx, "feed:global:page:901", samplePage(2), time.Second)
	clock.Advance(2 * time.Second)

	c.Put(ctx, "feed:global:page:1", samplePage(3), time.Minute)

	got, ok := c.Get(ctx, "feed:global:page:1")
	if !ok || got.Items[0].ID != 3 {
		t.Fatalf("Get() after expired entries filled the cache = %+v, %v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestMemoryPageCacheFullOfLiveEntriesRefusesNewKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryPageCache(WithClock(clock.Now), WithMaxEntries(1))

	c.Put(ctx, "a", samplePage(1), time.Hour)
	clock.Advance(2 * sweepInterval)
	c.Put(ctx, "b", samplePage(2), time.Hour)

	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatal("full cache accepted a new key while every entry is live")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("live entry evicted")
	}
}

func TestMemoryPageCachePutSweepsUnreadKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryPageCache(WithClock(clock.Now))

	for page := 900; page < 910; page++ {
		c.Put(ctx, fmt.Sprintf("feed:global:page:%d", page), samplePage(1), time.Second)
	}

	clock.Advance(sweepInterval / 2)
	c.Put(ctx, "feed:global:page:1", samplePage(2), time.Hour)
	if c.Len() != 11 {
		t.Fatalf("Len() before the sweep interval = %d, want 11", c.Len())
	}

	clock.Advance(sweepInterval)
	c.Put(ctx, "feed:global:page:2", samplePage(3), time.Hour)
	if c.Len() != 2 {
		t.Fatalf("Len() after the sweep interval = %d, want 2", c.Len())
	}
}

func TestMemoryPageCacheReturnedPageIsDetached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryPageCache()

	c.Put(ctx, "k", samplePage(1), time.Minute)
	got, _ := c.Get(ctx, "k")
	got.Items[0].Text = "changed"

	again, _ := c.Get(ctx, "k")
	if again.Items[0].Text != "post 1" {
		t.Fatalf("cached page mutated through a returned copy: %q", again.Items[0].Text)
	}
}

func TestMemoryPageCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryPageCache(WithClock(clock.Now))

	var wg sync.WaitGroup
	for worker := 0; worker < 16; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("feed:follow:%d:page:%d", worker%4, i%3)
				switch i % 5 {
				case 0:
					c.ClearPrefix(ctx, fmt.Sprintf("feed:follow:%d:page:", worker%4))
				case 1:
					clock.Advance(time.Second)
				default:
					c.Put(ctx, key, samplePage(int64(i)), 2*time.Second)
				}
				c.Get(ctx, key)
			}
		}(worker)
	}
	wg.Wait()

	c.Clear(ctx)
	if c.Len() != 0 {
		t.Fatalf("Len() after Clear = %d", c.Len())
	}
}
