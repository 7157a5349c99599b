package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/paginator"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

var tracer = otel.Tracer("feed-service")

// FeedComposer builds feed pages straight from the stores. It never caches.
type FeedComposer struct {
	posts    ports.PostStore
	graph    ports.FollowGraph
	pageSize int
}

func NewFeedComposer(posts ports.PostStore, graph ports.FollowGraph, pageSize int) *FeedComposer {
	if pageSize < 1 {
		pageSize = paginator.DefaultPageSize
	}
	return &FeedComposer{
		posts:    posts,
		graph:    graph,
		pageSize: pageSize,
	}
}

// Compose returns page pageNumber of the feed named by selector. viewerID is
// only informational here: the follow feed reads its viewer from the selector.
func (c *FeedComposer) Compose(ctx context.Context, selector domain.Selector, viewerID *int64, pageNumber int) (domain.Page, error) {
	ctx, span := tracer.Start(ctx, "compose_feed", trace.WithAttributes(
		attribute.String("feed.selector", selector.Key()),
		attribute.Int("feed.page", pageNumber),
	))
	defer span.End()

	posts, err := c.candidates(ctx, selector)
	if err != nil {
		span.RecordError(err)
		return domain.Page{}, err
	}

	domain.SortPosts(posts)
	page := paginator.Paginate(posts, c.pageSize, pageNumber)

	slog.Debug("Feed composed",
		"selector", selector.Key(),
		"page", page.Number,
		"items", len(page.Items),
		"total", page.TotalItems,
		"anonymous", viewerID == nil,
	)
	return page, nil
}

func (c *FeedComposer) candidates(ctx context.Context, selector domain.Selector) ([]domain.Post, error) {
	switch selector.Kind {
	case domain.KindGroup:
		group, err := c.posts.ResolveGroup(ctx, selector.Slug)
		if err != nil {
			return nil, err
		}
		return c.posts.ListPosts(ctx, ports.PostsByGroup(group.ID))

	case domain.KindAuthor:
		author, err := c.posts.ResolveUser(ctx, selector.Username)
		if err != nil {
			return nil, err
		}
		return c.posts.ListPosts(ctx, ports.PostsByAuthor(author.ID))

	case domain.KindFollow:
		authors, err := c.graph.FollowedAuthors(ctx, selector.ViewerID)
		if err != nil {
			return nil, err
		}
		if len(authors) == 0 {
			return nil, nil
		}
		return c.posts.ListPosts(ctx, ports.PostsByAuthorSet(authors))

	default:
		return c.posts.ListPosts(ctx, ports.AllPosts())
	}
}
