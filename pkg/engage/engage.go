// Package engage implements the engagement toggle boundary: the synchronous
// write, cache invalidation and job enqueue that precede all background
// convergence.
package engage

import (
	"context"
	"fmt"

	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/counters"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap"
)

// LikeStore is the durable side of a like toggle.
type LikeStore interface {
	GetPost(ctx context.Context, postID int64) (*types.Post, error)
	ToggleLike(ctx context.Context, userID, postID int64) (liked bool, changed bool, err error)
}

// Enqueuer submits jobs to the notification topic.
type Enqueuer interface {
	Enqueue(ctx context.Context, id string, payload []byte) (string, error)
}

// Service wires the like-toggle path.
// Toggles return as soon as the durable edge and the buffered delta are
// written; the durable counter converges on the next flush cycle.
type Service struct {
	Store         LikeStore
	Buffer        *counters.Buffer
	Cache         *cache.Cache
	Notifications Enqueuer
	Log           *zap.Logger
}

// ToggleLike flips a like and reports the resulting state.
// A like (not an unlike) fans out a notification job to the post author;
// the worker suppresses self-likes.
func (s *Service) ToggleLike(ctx context.Context, actorID, postID int64) (bool, error) {
	post, err := s.Store.GetPost(ctx, postID)
	if err != nil {
		return false, err
	}
	liked, changed, err := s.Store.ToggleLike(ctx, actorID, postID)
	if err != nil {
		return false, fmt.Errorf("toggle like: %w", err)
	}
	if !changed {
		// Lost a race against an identical toggle; no delta to buffer.
		return liked, nil
	}
	delta := int64(-1)
	if liked {
		delta = 1
	}
	if err := s.Buffer.Add(ctx, postID, delta); err != nil {
		return liked, fmt.Errorf("buffer like delta: %w", err)
	}
	if err := s.Cache.Invalidate(ctx, cache.PostKey(postID)); err != nil {
		s.Log.Warn("Failed to invalidate post cache",
			zap.Int64("post", postID), zap.Error(err))
	}
	if liked {
		s.enqueueNotification(ctx, post, actorID)
	}
	return liked, nil
}

func (s *Service) enqueueNotification(ctx context.Context, post *types.Post, actorID int64) {
	job := &types.NotificationJob{
		RecipientID: post.AuthorID,
		ActorID:     actorID,
		Event:       types.EventLike,
		PostID:      post.ID,
	}
	payload, err := job.Marshal()
	if err != nil {
		s.Log.Error("Failed to encode notification job", zap.Error(err))
		return
	}
	if _, err := s.Notifications.Enqueue(ctx, "", payload); err != nil {
		s.Log.Error("Failed to enqueue notification job",
			zap.Int64("post", post.ID), zap.Error(err))
	}
}
