package store

import (
	"context"
	"database/sql"

	"go.aavaz.network/pulse/pkg/types"
)

type notificationRow struct {
	ID          int64         `db:"id"`
	RecipientID int64         `db:"recipient_id"`
	ActorID     int64         `db:"actor_id"`
	Event       string        `db:"event"`
	PostID      sql.NullInt64 `db:"post_id"`
	CommentID   sql.NullInt64 `db:"comment_id"`
	ReadFlag    bool          `db:"read_flag"`
	CreatedAt   sql.NullTime  `db:"created_at"`
}

func (r *notificationRow) toNotification() *types.Notification {
	n := &types.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		ActorID:     r.ActorID,
		Event:       types.EventType(r.Event),
		Read:        r.ReadFlag,
	}
	if r.PostID.Valid {
		n.PostID = r.PostID.Int64
	}
	if r.CommentID.Valid {
		n.CommentID = r.CommentID.Int64
	}
	if r.CreatedAt.Valid {
		n.CreatedAt = r.CreatedAt.Time
	}
	return n
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Valid: true, Int64: id}
}

// InsertNotification stores a new notification record and fills in its ID.
func (s *Store) InsertNotification(ctx context.Context, n *types.Notification) error {
	// language=MariaDB
	const stmt = `INSERT INTO notifications
(recipient_id, actor_id, event, post_id, comment_id, read_flag, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`
	res, err := s.DB.ExecContext(ctx, stmt,
		n.RecipientID, n.ActorID, string(n.Event),
		nullID(n.PostID), nullID(n.CommentID), n.Read, n.CreatedAt)
	if err != nil {
		return err
	}
	n.ID, err = res.LastInsertId()
	return err
}

// Notifications lists a user's notifications, newest first.
func (s *Store) Notifications(ctx context.Context, userID int64, limit int) ([]*types.Notification, error) {
	// language=MariaDB
	const stmt = `SELECT id, recipient_id, actor_id, event, post_id, comment_id, read_flag, created_at
FROM notifications WHERE recipient_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	var rows []notificationRow
	if err := s.DB.SelectContext(ctx, &rows, stmt, userID, limit); err != nil {
		return nil, err
	}
	notifications := make([]*types.Notification, len(rows))
	for i := range rows {
		notifications[i] = rows[i].toNotification()
	}
	return notifications, nil
}
