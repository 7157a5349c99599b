package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

// CacheTTLs gives the page cache lifetime per feed kind. A missing or
// non-positive entry leaves that kind uncached.
type CacheTTLs map[domain.SelectorKind]time.Duration

type FeedService struct {
	composer  *FeedComposer
	posts     ports.PostStore
	graph     ports.FollowGraph
	cache     ports.PageCache
	publisher ports.EventPublisher
	ttls      CacheTTLs
}

// NewFeedService wires the composer behind the page cache. publisher may be
// nil when the service runs as a single replica.
func NewFeedService(
	composer *FeedComposer,
	posts ports.PostStore,
	graph ports.FollowGraph,
	cache ports.PageCache,
	publisher ports.EventPublisher,
	ttls CacheTTLs,
) *FeedService {
	return &FeedService{
		composer:  composer,
		posts:     posts,
		graph:     graph,
		cache:     cache,
		publisher: publisher,
		ttls:      ttls,
	}
}

var (
	_ ports.FeedService      = (*FeedService)(nil)
	_ ports.CacheInvalidator = (*FeedService)(nil)
)

func (s *FeedService) Feed(ctx context.Context, selector domain.Selector, viewerID *int64, page int) (domain.Page, error) {
	if page < 1 {
		page = 1
	}

	ttl := s.ttls[selector.Kind]
	if ttl <= 0 {
		return s.composer.Compose(ctx, selector, viewerID, page)
	}

	ctx, span := tracer.Start(ctx, "feed_page")
	defer span.End()

	key := selector.PageKey(page)
	if cached, ok := s.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("feed.cache_hit", true))
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("feed.cache_hit", false))

	// Two concurrent misses may both compose and both Put; composition has no
	// side effects so the second write just replaces the first.
	composed, err := s.composer.Compose(ctx, selector, viewerID, page)
	if err != nil {
		return domain.Page{}, err
	}
	// Past-the-end requests are stored under the page actually served, so
	// arbitrary ?page= values never mint new keys.
	s.cache.Put(ctx, selector.PageKey(composed.Number), composed, ttl)
	return composed, nil
}

func (s *FeedService) Profile(ctx context.Context, username string, viewerID *int64, page int) (*ports.Profile, error) {
	author, err := s.posts.ResolveUser(ctx, username)
	if err != nil {
		return nil, err
	}

	count, err := s.posts.CountPostsByAuthor(ctx, author.ID)
	if err != nil {
		return nil, err
	}

	following := false
	if viewerID != nil {
		following, err = s.graph.IsFollowing(ctx, *viewerID, author.ID)
		if err != nil {
			return nil, err
		}
	}

	feed, err := s.Feed(ctx, domain.AuthorFeed(username), viewerID, page)
	if err != nil {
		return nil, err
	}

	return &ports.Profile{
		Author:    *author,
		PostCount: count,
		Following: following,
		Page:      feed,
	}, nil
}

func (s *FeedService) PostDetail(ctx context.Context, postID int64) (*ports.PostDetail, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	count, err := s.posts.CountPostsByAuthor(ctx, post.AuthorID)
	if err != nil {
		return nil, err
	}

	comments, err := s.posts.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}

	return &ports.PostDetail{
		Post:            *post,
		AuthorPostCount: count,
		Comments:        comments,
	}, nil
}

func (s *FeedService) FollowUsername(ctx context.Context, followerID int64, username string) error {
	return s.changeFollow(ctx, followerID, username, true)
}

func (s *FeedService) UnfollowUsername(ctx context.Context, followerID int64, username string) error {
	return s.changeFollow(ctx, followerID, username, false)
}

func (s *FeedService) changeFollow(ctx context.Context, followerID int64, username string, follow bool) error {
	author, err := s.posts.ResolveUser(ctx, username)
	if err != nil {
		return err
	}
	if author.ID == followerID {
		return nil
	}

	if follow {
		err = s.graph.Follow(ctx, followerID, author.ID)
	} else {
		err = s.graph.Unfollow(ctx, followerID, author.ID)
	}
	if err != nil {
		return err
	}

	// The graph never touches the cache.
	s.InvalidateFollowFeed(ctx, followerID)

	if s.publisher != nil {
		if err := s.publisher.PublishFollowChanged(ctx, followerID, author.ID, follow); err != nil {
			slog.Warn("Failed to publish follow change", "follower_id", followerID, "author_id", author.ID, "error", err)
		}
	}
	return nil
}

func (s *FeedService) FlushCache(ctx context.Context) error {
	s.InvalidateAll(ctx)
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishCacheFlush(ctx)
}

func (s *FeedService) InvalidateFollowFeed(ctx context.Context, followerID int64) {
	s.cache.ClearPrefix(ctx, domain.FollowFeed(followerID).PagePrefix())
}

func (s *FeedService) InvalidateAll(ctx context.Context) {
	s.cache.Clear(ctx)
	slog.Info("Page cache flushed")
}
