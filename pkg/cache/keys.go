package cache

import (
	"fmt"
	"time"

	"go.aavaz.network/pulse/pkg/types"
)

// TTLs per key class. Hot toggled data lives seconds, list aggregates
// minutes, per-user settings a day. The like-delta hash has no TTL:
// entries die when a flush cycle clears them.
const (
	TTLFeed         = 15 * time.Minute
	TTLPost         = 10 * time.Minute
	TTLTopComments  = time.Minute
	TTLProfile      = 5 * time.Minute
	TTLNotification = 5 * time.Minute
	TTLRelations    = time.Minute
	TTLSettings     = 24 * time.Hour
)

// LikeCountKey is the hash holding buffered like/unlike deltas,
// one field per post ID.
const LikeCountKey = "post:likecount"

// FeedKey addresses the materialized feed list for one user and feed type.
func FeedKey(userID int64, feedType types.FeedType) string {
	return fmt.Sprintf("feed:user:%d:%s", userID, feedType)
}

// PostKey addresses a single cached post.
func PostKey(postID int64) string {
	return fmt.Sprintf("post:%d", postID)
}

// TopCommentsKey addresses one cached page of a post's top comments.
func TopCommentsKey(postID int64, page, limit int) string {
	return fmt.Sprintf("post:topcomments:%d:page:%d:limit:%d", postID, page, limit)
}

// ProfileKey addresses a cached user profile by ID.
func ProfileKey(userID int64) string {
	return fmt.Sprintf("user:profile:%d", userID)
}

// UsernameKey addresses a cached user profile by username.
func UsernameKey(username string) string {
	return "user:username:" + username
}

// NotificationsKey addresses a user's cached notification list.
func NotificationsKey(userID int64) string {
	return fmt.Sprintf("notifications:%d", userID)
}

// FollowersKey addresses one cached page of a user's follower list.
func FollowersKey(username string, page int) string {
	return fmt.Sprintf("followers:%s:%d", username, page)
}

// FollowingKey addresses one cached page of a user's following list.
func FollowingKey(username string, page int) string {
	return fmt.Sprintf("following:%s:%d", username, page)
}
