package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

// postColumns joins author and group so a feed needs a single query.
const postColumns = `
	SELECT p.id, p.author_id, u.username, p.group_id, COALESCE(g.slug, ''), p.text, p.image, p.created_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN post_groups g ON g.id = p.group_id
`

// Ties on created_at fall back to the id so pages stay stable between calls.
const postOrder = ` ORDER BY p.created_at DESC, p.id DESC`

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS post_groups (
		id BIGSERIAL PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id BIGSERIAL PRIMARY KEY,
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		group_id BIGINT REFERENCES post_groups(id) ON DELETE SET NULL,
		text TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS posts_created_idx ON posts (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS posts_group_idx ON posts (group_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id BIGSERIAL PRIMARY KEY,
		post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ ports.PostStore = (*PostgresStore)(nil)

func (r *PostgresStore) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// EnsureSchema creates tables and indexes when missing (idempotent).
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *PostgresStore) ListPosts(ctx context.Context, filter ports.PostFilter) ([]domain.Post, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch filter.Kind {
	case ports.FilterByGroup:
		rows, err = r.db.Query(ctx, postColumns+` WHERE p.group_id = $1`+postOrder, filter.GroupID)
	case ports.FilterByAuthor:
		rows, err = r.db.Query(ctx, postColumns+` WHERE p.author_id = $1`+postOrder, filter.AuthorID)
	case ports.FilterByAuthorSet:
		// WHERE = ANY($1) fetches the whole author set in one round trip.
		rows, err = r.db.Query(ctx, postColumns+` WHERE p.author_id = ANY($1)`+postOrder, filter.AuthorIDs)
	default:
		rows, err = r.db.Query(ctx, postColumns+postOrder)
	}
	if err != nil {
		return nil, storeError("list posts", err)
	}
	defer rows.Close()

	posts, err := r.collectPosts(rows)
	if err != nil {
		return nil, storeError("list posts", err)
	}
	return posts, nil
}

func (r *PostgresStore) ResolveGroup(ctx context.Context, slug string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.QueryRow(ctx,
		`SELECT id, slug, title, description FROM post_groups WHERE slug = $1`, slug,
	).Scan(&g.ID, &g.Slug, &g.Title, &g.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("group %q: %w", slug, domain.ErrNotFound)
		}
		return nil, storeError("resolve group", err)
	}
	return &g, nil
}

func (r *PostgresStore) ResolveUser(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT id, username, full_name FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.FullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
		}
		return nil, storeError("resolve user", err)
	}
	return &u, nil
}

func (r *PostgresStore) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	row := r.db.QueryRow(ctx, postColumns+` WHERE p.id = $1`, postID)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("post %d: %w", postID, domain.ErrNotFound)
		}
		return nil, storeError("get post", err)
	}
	return &p, nil
}

func (r *PostgresStore) CountPostsByAuthor(ctx context.Context, authorID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM posts WHERE author_id = $1`, authorID).Scan(&n); err != nil {
		return 0, storeError("count posts", err)
	}
	return n, nil
}

func (r *PostgresStore) ListComments(ctx context.Context, postID int64) ([]domain.Comment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.post_id, c.author_id, u.username, c.text, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created_at, c.id
	`, postID)
	if err != nil {
		return nil, storeError("list comments", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Author, &c.Text, &c.CreatedAt); err != nil {
			return nil, storeError("list comments", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list comments", err)
	}
	return comments, nil
}

// --- Helpers ---

func scanPost(row pgx.Row) (domain.Post, error) {
	var p domain.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Author, &p.GroupID, &p.GroupSlug, &p.Text, &p.Image, &p.CreatedAt)
	return p, err
}

func (r *PostgresStore) collectPosts(rows pgx.Rows) ([]domain.Post, error) {
	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
