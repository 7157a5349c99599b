package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

// scanBatch is the SCAN COUNT hint used by Clear and ClearPrefix.
const scanBatch = 500

// DefaultNamespace replaces an empty namespace; Clear must never match the
// whole keyspace.
const DefaultNamespace = "feedsvc:"

// Internal DTOs keep JSON tags out of the domain.
type postDTO struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	Author    string    `json:"author"`
	GroupID   *int64    `json:"group_id,omitempty"`
	GroupSlug string    `json:"group_slug,omitempty"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type pageDTO struct {
	Items       []postDTO `json:"items"`
	Number      int       `json:"number"`
	Size        int       `json:"size"`
	TotalItems  int       `json:"total_items"`
	TotalPages  int       `json:"total_pages"`
	HasNext     bool      `json:"has_next"`
	HasPrevious bool      `json:"has_previous"`
}

// RedisPageCache shares pages between replicas. Expiry is delegated to Redis
// (SET ... PX), every key lives under namespace.
type RedisPageCache struct {
	client    redis.UniversalClient
	namespace string
}

func NewRedisPageCache(client redis.UniversalClient, namespace string) *RedisPageCache {
	if namespace == "" {
		slog.Warn("Empty page cache namespace, using default", "namespace", DefaultNamespace)
		namespace = DefaultNamespace
	}
	return &RedisPageCache{client: client, namespace: namespace}
}

var _ ports.PageCache = (*RedisPageCache)(nil)

func (r *RedisPageCache) Get(ctx context.Context, key string) (domain.Page, bool) {
	data, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Page cache read failed, treating as miss", "key", key, "error", err)
		}
		return domain.Page{}, false
	}

	var dto pageDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		slog.Warn("Corrupted page cache entry, treating as miss", "key", key, "error", err)
		return domain.Page{}, false
	}
	return dto.toDomain(), true
}

func (r *RedisPageCache) Put(ctx context.Context, key string, page domain.Page, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(pageToDTO(page))
	if err != nil {
		slog.Warn("Page cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.namespace+key, data, ttl).Err(); err != nil {
		slog.Warn("Page cache write failed", "key", key, "error", err)
	}
}

func (r *RedisPageCache) Clear(ctx context.Context) {
	r.deleteMatching(ctx, escapeGlob(r.namespace)+"*")
}

func (r *RedisPageCache) ClearPrefix(ctx context.Context, prefix string) {
	r.deleteMatching(ctx, escapeGlob(r.namespace+prefix)+"*")
}

// deleteMatching walks the keyspace with SCAN (never KEYS) and deletes each
// batch in one pipeline.
func (r *RedisPageCache) deleteMatching(ctx context.Context, pattern string) {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			slog.Warn("Page cache flush failed", "pattern", pattern, "error", err)
			return
		}

		if len(keys) > 0 {
			pipe := r.client.Pipeline()
			pipe.Del(ctx, keys...)
			if _, err := pipe.Exec(ctx); err != nil {
				slog.Warn("Page cache flush failed", "pattern", pattern, "error", err)
				return
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	slog.Debug("Page cache entries deleted", "pattern", pattern, "count", deleted)
}

// --- Mappers ---

func escapeGlob(s string) string {
	var b strings.Builder
	for _, ch := range s {
		switch ch {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func pageToDTO(p domain.Page) pageDTO {
	items := make([]postDTO, len(p.Items))
	for i, post := range p.Items {
		items[i] = postDTO{
			ID:        post.ID,
			AuthorID:  post.AuthorID,
			Author:    post.Author,
			GroupID:   post.GroupID,
			GroupSlug: post.GroupSlug,
			Text:      post.Text,
			Image:     post.Image,
			CreatedAt: post.CreatedAt,
		}
	}
	return pageDTO{
		Items:       items,
		Number:      p.Number,
		Size:        p.Size,
		TotalItems:  p.TotalItems,
		TotalPages:  p.TotalPages,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}

func (d pageDTO) toDomain() domain.Page {
	items := make([]domain.Post, len(d.Items))
	for i, post := range d.Items {
		items[i] = domain.Post{
			ID:        post.ID,
			AuthorID:  post.AuthorID,
			Author:    post.Author,
			GroupID:   post.GroupID,
			GroupSlug: post.GroupSlug,
			Text:      post.Text,
			Image:     post.Image,
			CreatedAt: post.CreatedAt,
		}
	}
	return domain.Page{
		Items:       items,
		Number:      d.Number,
		Size:        d.Size,
		TotalItems:  d.TotalItems,
		TotalPages:  d.TotalPages,
		HasNext:     d.HasNext,
		HasPrevious: d.HasPrevious,
	}
}
