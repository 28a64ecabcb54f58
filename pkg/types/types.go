// Package types holds the domain records shared across the Pulse engine.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// PostKind classifies a post into one of a fixed small set.
type PostKind string

// Known post kinds.
const (
	KindOpinion     PostKind = "opinion"
	KindIssue       PostKind = "issue"
	KindIdea        PostKind = "idea"
	KindAchievement PostKind = "achievement"
	KindPersonal    PostKind = "personal"
)

// Point is a geographic coordinate (WGS84).
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Post is a content item as stored durably.
// The engine reads posts and applies counter increments; it never creates them.
type Post struct {
	ID           int64     `json:"id" db:"id"`
	AuthorID     int64     `json:"author_id" db:"author_id"`
	Kind         PostKind  `json:"kind" db:"kind"`
	Content      string    `json:"content" db:"content"`
	Tags         []string  `json:"tags,omitempty"`
	Location     *Point    `json:"location,omitempty"`
	LikeCount    int64     `json:"like_count" db:"like_count"`
	CommentCount int64     `json:"comment_count" db:"comment_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Author is the denormalized author info carried inside feed entries.
type Author struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Name     string `json:"name" db:"name"`
}

// User is a subject user as far as the engine cares:
// identity plus an optional home coordinate for locality feeds.
type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Name     string `db:"name"`
	Home     *Point
}

// FeedType selects one of the materialized feed kinds.
type FeedType string

// Feed types. FeedAll is a generation-only fan-out type:
// it is valid in feed jobs but not as a read-path key.
const (
	FeedMain         FeedType = "main"
	FeedLocality     FeedType = "locality"
	FeedAchievements FeedType = "achievements"
	FeedAll          FeedType = "all"
)

// Valid reports whether t is a known feed type.
func (t FeedType) Valid() bool {
	switch t {
	case FeedMain, FeedLocality, FeedAchievements, FeedAll:
		return true
	}
	return false
}

// FeedEntry is a denormalized post plus its computed rank score.
// Entries only ever live inside a materialized feed list in the cache.
type FeedEntry struct {
	Post
	Author Author  `json:"author"`
	Score  float64 `json:"score"`
}

// EventType tags a notification with the action that caused it.
type EventType string

// Notification event types.
const (
	EventLike    EventType = "like"
	EventComment EventType = "comment"
	EventFollow  EventType = "follow"
)

// Notification is a durable per-user notification record.
// Created only by the fan-out worker.
type Notification struct {
	ID          int64     `json:"id" db:"id"`
	RecipientID int64     `json:"recipient_id" db:"recipient_id"`
	ActorID     int64     `json:"actor_id" db:"actor_id"`
	Event       EventType `json:"event" db:"event"`
	PostID      int64     `json:"post_id,omitempty" db:"post_id"`
	CommentID   int64     `json:"comment_id,omitempty" db:"comment_id"`
	Read        bool      `json:"read" db:"read_flag"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// FeedJob asks a feed worker to materialize one feed page.
type FeedJob struct {
	UserID int64    `json:"user_id"`
	Page   int      `json:"page"`
	Type   FeedType `json:"type"`
}

// ID returns the deterministic job ID for a feed job.
// Duplicate enqueues for the same key coalesce in the queue.
func (j *FeedJob) ID() string {
	return fmt.Sprintf("feed:%d:%s:%d", j.UserID, j.Type, j.Page)
}

// Marshal encodes the job payload for the queue.
func (j *FeedJob) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalFeedJob decodes a feed job payload.
func UnmarshalFeedJob(data []byte) (*FeedJob, error) {
	job := new(FeedJob)
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("invalid feed job payload: %w", err)
	}
	return job, nil
}

// NotificationJob asks the fan-out worker to persist one notification.
type NotificationJob struct {
	RecipientID int64     `json:"recipient_id"`
	ActorID     int64     `json:"actor_id"`
	Event       EventType `json:"event"`
	PostID      int64     `json:"post_id,omitempty"`
	CommentID   int64     `json:"comment_id,omitempty"`
}

// Marshal encodes the job payload for the queue.
func (j *NotificationJob) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalNotificationJob decodes a notification job payload.
func UnmarshalNotificationJob(data []byte) (*NotificationJob, error) {
	job := new(NotificationJob)
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("invalid notification job payload: %w", err)
	}
	return job, nil
}
