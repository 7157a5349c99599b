package domain

import (
	"cmp"
	"slices"
	"time"

	"github.com/jupiterclapton/cenackle-feed/internal/core/paginator"
)

type User struct {
	ID       int64
	Username string
	FullName string
}

type Group struct {
	ID          int64
	Slug        string
	Title       string
	Description string
}

// Post is the read model consumed by the feed. GroupID is nil for posts
// published outside any group.
type Post struct {
	ID        int64
	AuthorID  int64
	Author    string // username
	GroupID   *int64
	GroupSlug string
	Text      string
	Image     string // optional media reference
	CreatedAt time.Time
}

type Comment struct {
	ID        int64
	PostID    int64
	AuthorID  int64
	Author    string
	Text      string
	CreatedAt time.Time
}

// Page is one rendered feed page. It is never mutated once built.
type Page = paginator.Page[Post]

// ComparePosts orders posts newest first, ties broken by the higher id.
func ComparePosts(a, b Post) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// SortPosts sorts in place following ComparePosts.
func SortPosts(posts []Post) {
	slices.SortStableFunc(posts, ComparePosts)
}
