// Package history keeps a SQLite record of every status the bot published.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store manages published posts using SQLite.
type Store struct {
	db *sql.DB
}

// Post is one published status.
type Post struct {
	PostID       uuid.UUID `json:"post_id"`
	SubmissionID int       `json:"submission_id"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Rating       string    `json:"rating"`
	Status       string    `json:"status"`
	Destination  string    `json:"destination"`
	PublishedAt  time.Time `json:"published_at"`
}

// NewStore opens (or creates) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the posts table if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		post_id TEXT PRIMARY KEY,
		submission_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		rating TEXT NOT NULL,
		status TEXT NOT NULL,
		destination TEXT NOT NULL,
		published_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_published_at ON posts(published_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a post. A zero PostID or PublishedAt is filled in.
func (s *Store) Record(post *Post) error {
	if post.PostID == uuid.Nil {
		post.PostID = uuid.New()
	}
	if post.PublishedAt.IsZero() {
		post.PublishedAt = time.Now()
	}
	post.PublishedAt = post.PublishedAt.UTC().Truncate(0)

	query := `
		INSERT INTO posts (
			post_id, submission_id, title, author, rating,
			status, destination, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		post.PostID.String(),
		post.SubmissionID,
		post.Title,
		post.Author,
		post.Rating,
		post.Status,
		post.Destination,
		formatTime(post.PublishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	return nil
}

// List returns the most recent posts, newest first. A limit of zero or less
// returns all of them.
func (s *Store) List(limit int) ([]Post, error) {
	query := `
		SELECT post_id, submission_id, title, author, rating,
		       status, destination, published_at
		FROM posts
		ORDER BY published_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return posts, nil
}

// Last returns the most recent post, or nil if nothing was published yet.
func (s *Store) Last() (*Post, error) {
	posts, err := s.List(1)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

// Count returns the number of recorded posts.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

// Published reports whether a submission was already published.
func (s *Store) Published(submissionID int) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT 1 FROM posts WHERE submission_id = ? LIMIT 1", submissionID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query post: %w", err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*Post, error) {
	var postIDStr, publishedAtStr string
	var post Post

	err := row.Scan(
		&postIDStr, &post.SubmissionID, &post.Title, &post.Author, &post.Rating,
		&post.Status, &post.Destination, &publishedAtStr,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	post.PostID, err = uuid.Parse(postIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid post_id: %w", err)
	}
	post.PublishedAt = parseTime(publishedAtStr)

	return &post, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
