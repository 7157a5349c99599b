package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
)

// --- DRIVEN (what the feed core needs) ---

type FilterKind int

const (
	FilterAll FilterKind = iota
	FilterByGroup
	FilterByAuthor
	FilterByAuthorSet
)

// PostFilter selects the candidate posts of a feed. Only the field matching
// Kind is read.
type PostFilter struct {
	Kind      FilterKind
	GroupID   int64
	AuthorID  int64
	AuthorIDs []int64
}

func AllPosts() PostFilter { return PostFilter{Kind: FilterAll} }
func PostsByGroup(groupID int64) PostFilter { return PostFilter{Kind: FilterByGroup, GroupID: groupID} }
func PostsByAuthor(authorID int64) PostFilter {
	return PostFilter{Kind: FilterByAuthor, AuthorID: authorID}
}
func PostsByAuthorSet(authorIDs []int64) PostFilter {
	return PostFilter{Kind: FilterByAuthorSet, AuthorIDs: authorIDs}
}

// PostStore is the read side of the post database. Lookups of unknown
// entities return domain.ErrNotFound; backend failures wrap
// domain.ErrStoreUnavailable.
type PostStore interface {
	ListPosts(ctx context.Context, filter PostFilter) ([]domain.Post, error)
	ResolveGroup(ctx context.Context, slug string) (*domain.Group, error)
	ResolveUser(ctx context.Context, username string) (*domain.User, error)

	GetPost(ctx context.Context, postID int64) (*domain.Post, error)
	CountPostsByAuthor(ctx context.Context, authorID int64) (int, error)
	// ListComments returns the comments of a post, oldest first.
	ListComments(ctx context.Context, postID int64) ([]domain.Comment, error)
}

// FollowGraph holds the follows(follower, author) relation. Following twice,
// following oneself and unfollowing a missing relation are silent no-ops.
type FollowGraph interface {
	IsFollowing(ctx context.Context, followerID, authorID int64) (bool, error)
	FollowedAuthors(ctx context.Context, userID int64) ([]int64, error)
	Follow(ctx context.Context, followerID, authorID int64) error
	Unfollow(ctx context.Context, followerID, authorID int64) error
}

// PageCache stores composed feed pages for a bounded time. It never fails:
// backend problems are logged and behave as a miss or a skipped write.
type PageCache interface {
	Get(ctx context.Context, key string) (domain.Page, bool)
	// Put replaces any entry stored under key. A non-positive ttl stores nothing.
	Put(ctx context.Context, key string, page domain.Page, ttl time.Duration)
	Clear(ctx context.Context)
	// ClearPrefix drops every entry whose key starts with prefix.
	ClearPrefix(ctx context.Context, prefix string)
}

// EventPublisher notifies other replicas that their cached pages went stale.
type EventPublisher interface {
	PublishFollowChanged(ctx context.Context, followerID, authorID int64, following bool) error
	PublishCacheFlush(ctx context.Context) error
}
