package domain

import (
	"fmt"
	"strconv"
)

type SelectorKind string

const (
	KindGlobal SelectorKind = "global"
	KindGroup  SelectorKind = "group"
	KindAuthor SelectorKind = "author"
	KindFollow SelectorKind = "follow"
)

// Selector identifies which feed a page request targets. Only the field
// matching Kind is meaningful.
type Selector struct {
	Kind     SelectorKind
	Slug     string // KindGroup
	Username string // KindAuthor
	ViewerID int64  // KindFollow
}

func GlobalFeed() Selector { return Selector{Kind: KindGlobal} }
func GroupFeed(slug string) Selector { return Selector{Kind: KindGroup, Slug: slug} }
func AuthorFeed(username string) Selector { return Selector{Kind: KindAuthor, Username: username} }
func FollowFeed(viewerID int64) Selector { return Selector{Kind: KindFollow, ViewerID: viewerID} }

// Key is the cache key prefix shared by every page of the feed.
func (s Selector) Key() string {
	switch s.Kind {
	case KindGroup:
		return "feed:group:" + s.Slug
	case KindAuthor:
		return "feed:author:" + s.Username
	case KindFollow:
		return "feed:follow:" + strconv.FormatInt(s.ViewerID, 10)
	default:
		return "feed:global"
	}
}

// PageKey is the cache key of one page of the feed.
func (s Selector) PageKey(page int) string {
	return fmt.Sprintf("%s:page:%d", s.Key(), page)
}

// PagePrefix matches the page keys of this feed and nothing else
// ("feed:follow:1:page:" never matches viewer 12).
func (s Selector) PagePrefix() string {
	return s.Key() + ":page:"
}

func (s Selector) String() string {
	return s.Key()
}
