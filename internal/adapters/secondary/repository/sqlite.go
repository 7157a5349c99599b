package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

// Timestamps are stored as unix nanoseconds; ordering on an integer column
// avoids any dependency on the driver's datetime formatting.
const sqlitePostColumns = `
	SELECT p.id, p.author_id, u.username, p.group_id, COALESCE(g.slug, ''), p.text, p.image, p.created_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN post_groups g ON g.id = p.group_id
`

var sqliteSchema = []string{
	`PRAGMA foreign_keys = ON;`,
	`CREATE TABLE IF NOT EXISTS users(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS post_groups(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS posts(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		group_id INTEGER REFERENCES post_groups(id) ON DELETE SET NULL,
		text TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS posts_created_idx ON posts(created_at DESC, id DESC);`,
	`CREATE TABLE IF NOT EXISTS comments(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`,
}

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

var _ ports.PostStore = (*SQLiteStore)(nil)

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- Writes (seeding and local development) ---

func (s *SQLiteStore) CreateUser(ctx context.Context, username, fullName string) (domain.User, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users(username, full_name) VALUES(?, ?)`, username, fullName)
	if err != nil {
		return domain.User{}, storeError("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, storeError("create user", err)
	}
	return domain.User{ID: id, Username: username, FullName: fullName}, nil
}

func (s *SQLiteStore) CreateGroup(ctx context.Context, slug, title, description string) (domain.Group, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO post_groups(slug, title, description) VALUES(?, ?, ?)`, slug, title, description)
	if err != nil {
		return domain.Group{}, storeError("create group", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Group{}, storeError("create group", err)
	}
	return domain.Group{ID: id, Slug: slug, Title: title, Description: description}, nil
}

func (s *SQLiteStore) CreatePost(ctx context.Context, author domain.User, group *domain.Group, text string, createdAt time.Time) (domain.Post, error) {
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var groupID sql.NullInt64
	p := domain.Post{AuthorID: author.ID, Author: author.Username, Text: text, CreatedAt: createdAt}
	if group != nil {
		groupID = sql.NullInt64{Int64: group.ID, Valid: true}
		gid := group.ID
		p.GroupID = &gid
		p.GroupSlug = group.Slug
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts(author_id, group_id, text, created_at) VALUES(?, ?, ?, ?)`,
		author.ID, groupID, text, createdAt.UnixNano())
	if err != nil {
		return domain.Post{}, storeError("create post", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return domain.Post{}, storeError("create post", err)
	}
	return p, nil
}

func (s *SQLiteStore) AddComment(ctx context.Context, postID int64, author domain.User, text string) (domain.Comment, error) {
	c := domain.Comment{PostID: postID, AuthorID: author.ID, Author: author.Username, Text: text, CreatedAt: time.Now().UTC()}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO comments(post_id, author_id, text, created_at) VALUES(?, ?, ?, ?)`,
		postID, author.ID, text, c.CreatedAt.UnixNano())
	if err != nil {
		return domain.Comment{}, storeError("add comment", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return domain.Comment{}, storeError("add comment", err)
	}
	return c, nil
}

// --- PostStore ---

func (s *SQLiteStore) ListPosts(ctx context.Context, filter ports.PostFilter) ([]domain.Post, error) {
	query := sqlitePostColumns
	var args []any

	switch filter.Kind {
	case ports.FilterByGroup:
		query += ` WHERE p.group_id = ?`
		args = append(args, filter.GroupID)
	case ports.FilterByAuthor:
		query += ` WHERE p.author_id = ?`
		args = append(args, filter.AuthorID)
	case ports.FilterByAuthorSet:
		if len(filter.AuthorIDs) == 0 {
			return nil, nil
		}
		marks := strings.TrimSuffix(strings.Repeat("?,", len(filter.AuthorIDs)), ",")
		query += ` WHERE p.author_id IN (` + marks + `)`
		for _, id := range filter.AuthorIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list posts", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanSQLitePost(rows)
		if err != nil {
			return nil, storeError("list posts", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list posts", err)
	}
	return posts, nil
}

func (s *SQLiteStore) ResolveGroup(ctx context.Context, slug string) (*domain.Group, error) {
	var g domain.Group
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, title, description FROM post_groups WHERE slug = ?`, slug,
	).Scan(&g.ID, &g.Slug, &g.Title, &g.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %q: %w", slug, domain.ErrNotFound)
		}
		return nil, storeError("resolve group", err)
	}
	return &g, nil
}

func (s *SQLiteStore) ResolveUser(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, full_name FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.FullName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
		}
		return nil, storeError("resolve user", err)
	}
	return &u, nil
}

func (s *SQLiteStore) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	p, err := scanSQLitePost(s.db.QueryRowContext(ctx, sqlitePostColumns+` WHERE p.id = ?`, postID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %d: %w", postID, domain.ErrNotFound)
		}
		return nil, storeError("get post", err)
	}
	return &p, nil
}

func (s *SQLiteStore) CountPostsByAuthor(ctx context.Context, authorID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM posts WHERE author_id = ?`, authorID).Scan(&n); err != nil {
		return 0, storeError("count posts", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, postID int64) ([]domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.post_id, c.author_id, u.username, c.text, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = ?
		ORDER BY c.created_at, c.id
	`, postID)
	if err != nil {
		return nil, storeError("list comments", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var (
			c       domain.Comment
			created int64
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Author, &c.Text, &created); err != nil {
			return nil, storeError("list comments", err)
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list comments", err)
	}
	return comments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePost(row rowScanner) (domain.Post, error) {
	var (
		p       domain.Post
		groupID sql.NullInt64
		created int64
	)
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Author, &groupID, &p.GroupSlug, &p.Text, &p.Image, &created); err != nil {
		return domain.Post{}, err
	}
	if groupID.Valid {
		gid := groupID.Int64
		p.GroupID = &gid
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	return p, nil
}
