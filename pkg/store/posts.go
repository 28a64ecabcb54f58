package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.aavaz.network/pulse/pkg/types"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

type postRow struct {
	ID           int64           `db:"id"`
	AuthorID     int64           `db:"author_id"`
	Kind         string          `db:"kind"`
	Content      string          `db:"content"`
	Tags         string          `db:"tags"`
	Lng          sql.NullFloat64 `db:"lng"`
	Lat          sql.NullFloat64 `db:"lat"`
	LikeCount    int64           `db:"like_count"`
	CommentCount int64           `db:"comment_count"`
	CreatedAt    time.Time       `db:"created_at"`
}

func (r *postRow) toPost() (*types.Post, error) {
	post := &types.Post{
		ID:           r.ID,
		AuthorID:     r.AuthorID,
		Kind:         types.PostKind(r.Kind),
		Content:      r.Content,
		LikeCount:    r.LikeCount,
		CommentCount: r.CommentCount,
		CreatedAt:    r.CreatedAt,
	}
	if r.Tags != "" {
		if err := json.Unmarshal([]byte(r.Tags), &post.Tags); err != nil {
			return nil, fmt.Errorf("invalid tags on post %d: %w", r.ID, err)
		}
	}
	if r.Lng.Valid && r.Lat.Valid {
		post.Location = &types.Point{Lng: r.Lng.Float64, Lat: r.Lat.Float64}
	}
	return post, nil
}

const postColumns = `id, author_id, kind, content, tags, lng, lat, like_count, comment_count, created_at`

func (s *Store) queryPosts(ctx context.Context, query string, args ...interface{}) ([]*types.Post, error) {
	var rows []postRow
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	posts := make([]*types.Post, len(rows))
	for i := range rows {
		post, err := rows[i].toPost()
		if err != nil {
			return nil, err
		}
		posts[i] = post
	}
	return posts, nil
}

// TopPosts returns up to limit posts ordered by the rough popularity
// heuristic used to pre-select ranking candidates.
func (s *Store) TopPosts(ctx context.Context, limit int) ([]*types.Post, error) {
	// language=MariaDB
	const stmt = `SELECT ` + postColumns + ` FROM posts
ORDER BY like_count DESC, comment_count DESC, created_at DESC
LIMIT ?;`
	return s.queryPosts(ctx, stmt, limit)
}

// PostsByKind returns up to limit posts of one kind, by popularity.
func (s *Store) PostsByKind(ctx context.Context, kind types.PostKind, limit int) ([]*types.Post, error) {
	// language=MariaDB
	const stmt = `SELECT ` + postColumns + ` FROM posts
WHERE kind = ?
ORDER BY like_count DESC, comment_count DESC, created_at DESC
LIMIT ?;`
	return s.queryPosts(ctx, stmt, string(kind), limit)
}

// PostsNearCoarse returns located posts inside the bounding box that
// encloses a circle of radiusMeters around the given point, by popularity.
// The box over-selects near its corners; callers cut to the exact radius
// with a great-circle distance check.
func (s *Store) PostsNearCoarse(ctx context.Context, at types.Point, radiusMeters float64, limit int) ([]*types.Post, error) {
	const metersPerDegree = 111320.0
	latDelta := radiusMeters / metersPerDegree
	lngScale := math.Cos(at.Lat * math.Pi / 180)
	if lngScale < 0.01 {
		lngScale = 0.01 // keep the box bounded near the poles
	}
	lngDelta := radiusMeters / (metersPerDegree * lngScale)
	// language=MariaDB
	const stmt = `SELECT ` + postColumns + ` FROM posts
WHERE lat IS NOT NULL AND lng IS NOT NULL
  AND lat BETWEEN ? AND ?
  AND lng BETWEEN ? AND ?
ORDER BY like_count DESC, comment_count DESC, created_at DESC
LIMIT ?;`
	return s.queryPosts(ctx, stmt,
		at.Lat-latDelta, at.Lat+latDelta,
		at.Lng-lngDelta, at.Lng+lngDelta,
		limit)
}

// GetPost returns one post or ErrNotFound.
func (s *Store) GetPost(ctx context.Context, postID int64) (*types.Post, error) {
	// language=MariaDB
	const stmt = `SELECT ` + postColumns + ` FROM posts WHERE id = ?;`
	var row postRow
	err := s.DB.GetContext(ctx, &row, stmt, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", postID, ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	return row.toPost()
}

// InsertPost stores a new post and fills in its ID.
func (s *Store) InsertPost(ctx context.Context, post *types.Post) error {
	tags, err := json.Marshal(post.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	var lng, lat sql.NullFloat64
	if post.Location != nil {
		lng = sql.NullFloat64{Valid: true, Float64: post.Location.Lng}
		lat = sql.NullFloat64{Valid: true, Float64: post.Location.Lat}
	}
	// language=MariaDB
	const stmt = `INSERT INTO posts
(author_id, kind, content, tags, lng, lat, like_count, comment_count, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
	res, err := s.DB.ExecContext(ctx, stmt,
		post.AuthorID, string(post.Kind), post.Content, string(tags),
		lng, lat, post.LikeCount, post.CommentCount, post.CreatedAt)
	if err != nil {
		return err
	}
	post.ID, err = res.LastInsertId()
	return err
}

// ApplyLikeDelta reconciles one buffered like delta into the durable counter
// with a single atomic in-place update.
func (s *Store) ApplyLikeDelta(ctx context.Context, postID int64, delta int64) error {
	// language=MariaDB
	const stmt = `UPDATE posts SET like_count = like_count + ? WHERE id = ?;`
	res, err := s.DB.ExecContext(ctx, stmt, delta, postID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("post %d: %w", postID, ErrNotFound)
	}
	return nil
}
