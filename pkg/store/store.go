// Package store is the durable MySQL store of posts, users, likes and
// notifications. The engine reads candidates from it and reconciles derived
// counters into it; post/user creation exists for seeding and tests.
package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Store wraps the SQL database.
type Store struct {
	DB *sqlx.DB
}

// New creates a Store on an existing database handle.
func New(db *sqlx.DB) *Store {
	return &Store{DB: db}
}

// CreateTables creates all tables the engine uses.
func (s *Store) CreateTables(ctx context.Context) error {
	// language=MariaDB
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	username VARCHAR(64) NOT NULL UNIQUE,
	name VARCHAR(128) NOT NULL,
	home_lng DOUBLE NULL,
	home_lat DOUBLE NULL
);
CREATE TABLE IF NOT EXISTS posts (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	author_id BIGINT NOT NULL,
	kind VARCHAR(16) NOT NULL,
	content TEXT NOT NULL,
	tags TEXT NOT NULL,
	lng DOUBLE NULL,
	lat DOUBLE NULL,
	like_count BIGINT NOT NULL DEFAULT 0,
	comment_count BIGINT NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	INDEX idx_posts_popularity (like_count, comment_count, created_at),
	INDEX idx_posts_kind (kind, created_at),
	INDEX idx_posts_geo (lat, lng)
);
CREATE TABLE IF NOT EXISTS likes (
	user_id BIGINT NOT NULL,
	post_id BIGINT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, post_id)
);
CREATE TABLE IF NOT EXISTS notifications (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	recipient_id BIGINT NOT NULL,
	actor_id BIGINT NOT NULL,
	event VARCHAR(16) NOT NULL,
	post_id BIGINT NULL,
	comment_id BIGINT NULL,
	read_flag BOOLEAN NOT NULL DEFAULT FALSE,
	created_at DATETIME NOT NULL,
	INDEX idx_notifications_recipient (recipient_id, read_flag, created_at)
);`
	for _, stmt := range splitStatements(ddl) {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var stmts []string
	start := 0
	for i := 0; i < len(script); i++ {
		if script[i] == ';' {
			stmt := script[start:i]
			if hasContent(stmt) {
				stmts = append(stmts, stmt)
			}
			start = i + 1
		}
	}
	if hasContent(script[start:]) {
		stmts = append(stmts, script[start:])
	}
	return stmts
}

func hasContent(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return true
		}
	}
	return false
}
