// Package graph holds the follows(follower, author) relation.
package graph

import (
	"context"
	"slices"
	"sync"

	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

// MemoryGraph keeps one lock per follower: mutations of unrelated followers
// never wait on each other, and a pair is always read under its follower's lock.
type MemoryGraph struct {
	mu        sync.Mutex // guards the followers map, not the sets
	followers map[int64]*followSet
}

type followSet struct {
	mu      sync.RWMutex
	authors map[int64]struct{}
}

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{followers: make(map[int64]*followSet)}
}

var _ ports.FollowGraph = (*MemoryGraph)(nil)

func (g *MemoryGraph) set(followerID int64, create bool) *followSet {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.followers[followerID]
	if !ok && create {
		s = &followSet{authors: make(map[int64]struct{})}
		g.followers[followerID] = s
	}
	return s
}

func (g *MemoryGraph) IsFollowing(_ context.Context, followerID, authorID int64) (bool, error) {
	s := g.set(followerID, false)
	if s == nil {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.authors[authorID]
	return ok, nil
}

// FollowedAuthors returns the followed author ids in ascending order.
func (g *MemoryGraph) FollowedAuthors(_ context.Context, userID int64) ([]int64, error) {
	s := g.set(userID, false)
	if s == nil {
		return nil, nil
	}

	s.mu.RLock()
	out := make([]int64, 0, len(s.authors))
	for id := range s.authors {
		out = append(out, id)
	}
	s.mu.RUnlock()

	slices.Sort(out)
	return out, nil
}

func (g *MemoryGraph) Follow(_ context.Context, followerID, authorID int64) error {
	if followerID == authorID {
		return nil
	}

	s := g.set(followerID, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors[authorID] = struct{}{}
	return nil
}

func (g *MemoryGraph) Unfollow(_ context.Context, followerID, authorID int64) error {
	s := g.set(followerID, false)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.authors, authorID)
	return nil
}
