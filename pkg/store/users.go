package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.aavaz.network/pulse/pkg/types"
)

type userRow struct {
	ID      int64           `db:"id"`
	Usernm  string          `db:"username"`
	Name    string          `db:"name"`
	HomeLng sql.NullFloat64 `db:"home_lng"`
	HomeLat sql.NullFloat64 `db:"home_lat"`
}

func (r *userRow) toUser() *types.User {
	user := &types.User{ID: r.ID, Username: r.Usernm, Name: r.Name}
	if r.HomeLng.Valid && r.HomeLat.Valid {
		user.Home = &types.Point{Lng: r.HomeLng.Float64, Lat: r.HomeLat.Float64}
	}
	return user
}

// GetUser returns one user or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	// language=MariaDB
	const stmt = `SELECT id, username, name, home_lng, home_lat FROM users WHERE id = ?;`
	var row userRow
	err := s.DB.GetContext(ctx, &row, stmt, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	return row.toUser(), nil
}

// InsertUser stores a new user and fills in its ID.
func (s *Store) InsertUser(ctx context.Context, user *types.User) error {
	var lng, lat sql.NullFloat64
	if user.Home != nil {
		lng = sql.NullFloat64{Valid: true, Float64: user.Home.Lng}
		lat = sql.NullFloat64{Valid: true, Float64: user.Home.Lat}
	}
	// language=MariaDB
	const stmt = `INSERT INTO users (username, name, home_lng, home_lat) VALUES (?, ?, ?, ?);`
	res, err := s.DB.ExecContext(ctx, stmt, user.Username, user.Name, lng, lat)
	if err != nil {
		return err
	}
	user.ID, err = res.LastInsertId()
	return err
}

// AuthorsByID bulk-fetches author records for feed hydration.
// Unknown IDs are simply absent from the result map.
func (s *Store) AuthorsByID(ctx context.Context, userIDs []int64) (map[int64]types.Author, error) {
	if len(userIDs) == 0 {
		return map[int64]types.Author{}, nil
	}
	// language=MariaDB
	const stmt = `SELECT id, username, name FROM users WHERE id IN (?);`
	query, args, err := sqlx.In(stmt, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to compile WHERE IN query: %w", err)
	}
	query = s.DB.Rebind(query)
	var rows []types.Author
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	authors := make(map[int64]types.Author, len(rows))
	for _, a := range rows {
		authors[a.ID] = a
	}
	return authors, nil
}
