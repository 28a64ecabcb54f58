package store

import (
	"context"
	"database/sql"
	"time"
)

// ToggleLike flips the durable like edge between a user and a post.
// Returns liked=true when the call created the edge, false when it removed
// it. A concurrent duplicate insert resolves to changed=false so callers
// skip the counter delta.
func (s *Store) ToggleLike(ctx context.Context, userID, postID int64) (liked bool, changed bool, err error) {
	tx, err := s.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	// language=MariaDB
	const deleteStmt = `DELETE FROM likes WHERE user_id = ? AND post_id = ?;`
	res, err := tx.ExecContext(ctx, deleteStmt, userID, postID)
	if err != nil {
		return false, false, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, false, err
	}
	if deleted > 0 {
		return false, true, tx.Commit()
	}
	// language=MariaDB
	const insertStmt = `INSERT IGNORE INTO likes (user_id, post_id, created_at) VALUES (?, ?, ?);`
	res, err = tx.ExecContext(ctx, insertStmt, userID, postID, time.Now())
	if err != nil {
		return false, false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, false, err
	}
	return true, inserted > 0, tx.Commit()
}

// HasLiked reports whether the like edge exists.
func (s *Store) HasLiked(ctx context.Context, userID, postID int64) (bool, error) {
	// language=MariaDB
	const stmt = `SELECT COUNT(*) FROM likes WHERE user_id = ? AND post_id = ?;`
	var n int64
	if err := s.DB.GetContext(ctx, &n, stmt, userID, postID); err != nil {
		return false, err
	}
	return n > 0, nil
}
