package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
)

// --- DRIVING (what the service exposes) ---

// Profile is an author page: the author, how much they posted, whether the
// viewer follows them, and one page of their posts.
type Profile struct {
	Author    domain.User
	PostCount int
	Following bool
	Page      domain.Page
}

type PostDetail struct {
	Post            domain.Post
	AuthorPostCount int
	Comments        []domain.Comment
}

type FeedService interface {
	// Feed returns one page of a feed, served from the page cache when fresh.
	// viewerID is nil for anonymous requests.
	Feed(ctx context.Context, selector domain.Selector, viewerID *int64, page int) (domain.Page, error)

	Profile(ctx context.Context, username string, viewerID *int64, page int) (*Profile, error)
	PostDetail(ctx context.Context, postID int64) (*PostDetail, error)

	FollowUsername(ctx context.Context, followerID int64, username string) error
	UnfollowUsername(ctx context.Context, followerID int64, username string) error

	// FlushCache drops every cached page of this replica and asks the others to do the same.
	FlushCache(ctx context.Context) error
}

// CacheInvalidator is driven by events coming from other replicas.
type CacheInvalidator interface {
	InvalidateFollowFeed(ctx context.Context, followerID int64)
	InvalidateAll(ctx context.Context)
}
