package notify

import (
	"context"
	"fmt"

	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/types"
)

// NotificationSource lists notifications from the durable store.
type NotificationSource interface {
	Notifications(ctx context.Context, userID int64, limit int) ([]*types.Notification, error)
}

// Reader serves a user's notification list cache-aside: cache first, store
// on miss, cached copy refilled with its standard TTL.
type Reader struct {
	Cache *cache.Cache
	Store NotificationSource
	Limit int
}

// List returns a user's notifications, newest first.
func (r *Reader) List(ctx context.Context, userID int64) ([]*types.Notification, error) {
	key := cache.NotificationsKey(userID)
	var cached []*types.Notification
	hit, err := r.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		return nil, err
	}
	if hit {
		return cached, nil
	}
	notifications, err := r.Store.Notifications(ctx, userID, r.Limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications for user %d: %w", userID, err)
	}
	if err := r.Cache.SetJSON(ctx, key, notifications, cache.TTLNotification); err != nil {
		return nil, err
	}
	return notifications, nil
}

// Invalidate drops a user's cached notification list.
// Mutators of notification state call this; the fan-out worker does not.
func (r *Reader) Invalidate(ctx context.Context, userID int64) error {
	return r.Cache.Invalidate(ctx, cache.NotificationsKey(userID))
}
