package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

// MemoryStore is a process-local post store. It backs local runs and tests;
// the write methods stand in for the external post service.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[int64]domain.User
	groups   map[int64]domain.Group
	posts    map[int64]domain.Post
	comments map[int64][]domain.Comment
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]domain.User),
		groups:   make(map[int64]domain.Group),
		posts:    make(map[int64]domain.Post),
		comments: make(map[int64][]domain.Comment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ ports.PostStore = (*MemoryStore)(nil)

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreateUser(username, fullName string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := domain.User{ID: s.id(), Username: username, FullName: fullName}
	s.users[u.ID] = u
	return u
}

func (s *MemoryStore) CreateGroup(slug, title, description string) domain.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := domain.Group{ID: s.id(), Slug: slug, Title: title, Description: description}
	s.groups[g.ID] = g
	return g
}

// CreatePost stores a post. A zero createdAt means now; group may be nil.
func (s *MemoryStore) CreatePost(author domain.User, group *domain.Group, text string, createdAt time.Time) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[author.ID]; !ok {
		return domain.Post{}, fmt.Errorf("create post: author %d: %w", author.ID, domain.ErrNotFound)
	}
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	p := domain.Post{
		ID:        s.id(),
		AuthorID:  author.ID,
		Author:    author.Username,
		Text:      text,
		CreatedAt: createdAt,
	}
	if group != nil {
		if _, ok := s.groups[group.ID]; !ok {
			return domain.Post{}, fmt.Errorf("create post: group %q: %w", group.Slug, domain.ErrNotFound)
		}
		gid := group.ID
		p.GroupID = &gid
		p.GroupSlug = group.Slug
	}
	s.posts[p.ID] = p
	return p, nil
}

func (s *MemoryStore) DeletePost(postID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.posts, postID)
	delete(s.comments, postID)
}

func (s *MemoryStore) AddComment(postID int64, author domain.User, text string) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return domain.Comment{}, fmt.Errorf("add comment: post %d: %w", postID, domain.ErrNotFound)
	}
	c := domain.Comment{
		ID:        s.id(),
		PostID:    postID,
		AuthorID:  author.ID,
		Author:    author.Username,
		Text:      text,
		CreatedAt: s.now(),
	}
	s.comments[postID] = append(s.comments[postID], c)
	return c, nil
}

func (s *MemoryStore) ListPosts(ctx context.Context, filter ports.PostFilter) ([]domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("list posts", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if matches(filter, p) {
			out = append(out, clonePost(p))
		}
	}
	domain.SortPosts(out)
	return out, nil
}

func matches(filter ports.PostFilter, p domain.Post) bool {
	switch filter.Kind {
	case ports.FilterByGroup:
		return p.GroupID != nil && *p.GroupID == filter.GroupID
	case ports.FilterByAuthor:
		return p.AuthorID == filter.AuthorID
	case ports.FilterByAuthorSet:
		return slices.Contains(filter.AuthorIDs, p.AuthorID)
	default:
		return true
	}
}

func (s *MemoryStore) ResolveGroup(ctx context.Context, slug string) (*domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("resolve group", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.groups {
		if g.Slug == slug {
			return &g, nil
		}
	}
	return nil, fmt.Errorf("group %q: %w", slug, domain.ErrNotFound)
}

func (s *MemoryStore) ResolveUser(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("resolve user", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
}

func (s *MemoryStore) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("get post", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[postID]
	if !ok {
		return nil, fmt.Errorf("post %d: %w", postID, domain.ErrNotFound)
	}
	p = clonePost(p)
	return &p, nil
}

func (s *MemoryStore) CountPostsByAuthor(ctx context.Context, authorID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeError("count posts", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.posts {
		if p.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListComments(ctx context.Context, postID int64) ([]domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("list comments", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.comments[postID]), nil
}

// clonePost detaches the GroupID pointer so callers cannot write through it.
func clonePost(p domain.Post) domain.Post {
	if p.GroupID != nil {
		gid := *p.GroupID
		p.GroupID = &gid
	}
	return p
}
