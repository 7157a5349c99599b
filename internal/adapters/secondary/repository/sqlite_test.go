package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "feed.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreFeedQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestSQLite(t)

	alice, err := store.CreateUser(ctx, "alice", "Alice")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	bob, err := store.CreateUser(ctx, "bob", "Bob")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	cats, err := store.CreateGroup(ctx, "cats", "Cats", "all about cats")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p1, err := store.CreatePost(ctx, alice, &cats, "one", base)
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	p2, _ := store.CreatePost(ctx, bob, nil, "two", base.Add(time.Minute))
	p3, _ := store.CreatePost(ctx, alice, nil, "three", base.Add(time.Minute))

	tests := []struct {
		name   string
		filter ports.PostFilter
		want   []int64
	}{
		{name: "all with id tie-break", filter: ports.AllPosts(), want: []int64{p3.ID, p2.ID, p1.ID}},
		{name: "by group", filter: ports.PostsByGroup(cats.ID), want: []int64{p1.ID}},
		{name: "by author", filter: ports.PostsByAuthor(alice.ID), want: []int64{p3.ID, p1.ID}},
		{name: "by author set", filter: ports.PostsByAuthorSet([]int64{alice.ID, bob.ID}), want: []int64{p3.ID, p2.ID, p1.ID}},
		{name: "empty author set", filter: ports.PostsByAuthorSet(nil), want: []int64{}},
	}

	for _, testCase := range tests {
		got, err := store.ListPosts(ctx, testCase.filter)
		if err != nil {
			t.Fatalf("%s: ListPosts() error = %v", testCase.name, err)
		}
		if !equalIDs(ids(got), testCase.want) {
			t.Fatalf("%s: ListPosts() = %v, want %v", testCase.name, ids(got), testCase.want)
		}
	}

	got, err := store.GetPost(ctx, p1.ID)
	if err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	if got.GroupID == nil || *got.GroupID != cats.ID || got.GroupSlug != "cats" || got.Author != "alice" {
		t.Fatalf("GetPost() = %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("GetPost() created at %v, want %v", got.CreatedAt, base)
	}

	if n, err := store.CountPostsByAuthor(ctx, alice.ID); err != nil || n != 2 {
		t.Fatalf("CountPostsByAuthor() = %d, %v", n, err)
	}
	if comments, err := store.ListComments(ctx, p1.ID); err != nil || len(comments) != 0 {
		t.Fatalf("ListComments() = %v, %v", comments, err)
	}

	first, err := store.AddComment(ctx, p1.ID, bob, "nice")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	second, _ := store.AddComment(ctx, p1.ID, alice, "thanks")
	comments, err := store.ListComments(ctx, p1.ID)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 2 || comments[0].ID != first.ID || comments[1].ID != second.ID || comments[0].Author != "bob" {
		t.Fatalf("ListComments() = %+v", comments)
	}
}

func TestSQLiteStoreNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestSQLite(t)

	if _, err := store.ResolveGroup(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ResolveGroup() error = %v, want ErrNotFound", err)
	}
	if _, err := store.ResolveUser(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ResolveUser() error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetPost(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetPost() error = %v, want ErrNotFound", err)
	}
}
