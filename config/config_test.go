package config

import (
	"os"
	"testing"
	"time"

	"github.com/jupiterclapton/cenackle-feed/internal/core/paginator"
)

// Tests here mutate the environment and cannot run in parallel.

// unsetAll removes keys for the duration of the test. An empty value set
// through t.Setenv still counts as set.
func unsetAll(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetAll(t, "FEED_CACHE_TTL_GLOBAL", "FEED_CACHE_TTL_GROUP", "FEED_CACHE_TTL_AUTHOR", "FEED_CACHE_TTL_FOLLOW", "FEED_PAGE_SIZE", "POST_STORE", "PAGE_CACHE", "FOLLOW_GRAPH")

	cfg := Load()

	if cfg.CacheTTLGlobal != 20*time.Second {
		t.Errorf("CacheTTLGlobal = %v, want 20s", cfg.CacheTTLGlobal)
	}
	if cfg.CacheTTLGroup != 0 || cfg.CacheTTLAuthor != 0 || cfg.CacheTTLFollow != 0 {
		t.Errorf("non-global TTLs = %v/%v/%v, want 0", cfg.CacheTTLGroup, cfg.CacheTTLAuthor, cfg.CacheTTLFollow)
	}
	if cfg.PageSize != paginator.DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, paginator.DefaultPageSize)
	}
	if cfg.PostStore != BackendPostgres || cfg.FollowGraph != BackendNeo4j || cfg.PageCache != BackendRedis {
		t.Errorf("backends = %s/%s/%s", cfg.PostStore, cfg.FollowGraph, cfg.PageCache)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FEED_CACHE_TTL_GLOBAL", "45")
	t.Setenv("FEED_CACHE_TTL_GROUP", "1m30s")
	t.Setenv("FEED_CACHE_TTL_FOLLOW", "soon")
	t.Setenv("FEED_PAGE_SIZE", " 25 ")
	t.Setenv("POST_STORE", "sqlite")
	t.Setenv("NATS_URL", "")

	cfg := Load()

	if cfg.CacheTTLGlobal != 45*time.Second {
		t.Errorf("CacheTTLGlobal = %v, want 45s", cfg.CacheTTLGlobal)
	}
	if cfg.CacheTTLGroup != 90*time.Second {
		t.Errorf("CacheTTLGroup = %v, want 1m30s", cfg.CacheTTLGroup)
	}
	if cfg.CacheTTLFollow != 0 {
		t.Errorf("CacheTTLFollow = %v, want fallback 0", cfg.CacheTTLFollow)
	}
	if cfg.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.PageSize)
	}
	if cfg.PostStore != BackendSQLite {
		t.Errorf("PostStore = %q, want sqlite", cfg.PostStore)
	}
	if cfg.NatsUrl != "" {
		t.Errorf("NatsUrl = %q, want empty", cfg.NatsUrl)
	}
}

func TestLoadRejectsEmptyRedisNamespace(t *testing.T) {
	unsetAll(t, "POST_STORE", "FOLLOW_GRAPH", "FEED_PAGE_SIZE")
	t.Setenv("PAGE_CACHE", "redis")
	t.Setenv("FEED_CACHE_NAMESPACE", "")

	cfg := Load()
	if cfg.CacheNamespace != "" {
		t.Fatalf("CacheNamespace = %q, want the explicit empty value", cfg.CacheNamespace)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() accepted a redis page cache without a namespace")
	}
}

func TestValidate(t *testing.T) {
	base := Config{PostStore: BackendMemory, FollowGraph: BackendMemory, PageCache: BackendMemory, PageSize: 10}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.PostStore = "mysql" }, wantErr: true},
		{name: "unknown graph", mutate: func(c *Config) { c.FollowGraph = "dgraph" }, wantErr: true},
		{name: "unknown cache", mutate: func(c *Config) { c.PageCache = "memcached" }, wantErr: true},
		{name: "zero page size", mutate: func(c *Config) { c.PageSize = 0 }, wantErr: true},
		{name: "redis without namespace", mutate: func(c *Config) { c.PageCache = BackendRedis; c.CacheNamespace = "" }, wantErr: true},
		{name: "redis with namespace", mutate: func(c *Config) { c.PageCache = BackendRedis; c.CacheNamespace = "feedsvc:" }},
		{name: "memory without namespace", mutate: func(c *Config) { c.CacheNamespace = "" }},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := base
			testCase.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != testCase.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, testCase.wantErr)
			}
		})
	}
}
