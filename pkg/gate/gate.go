// Package gate is the read-path entry point for feeds.
//
// Reads are cache-only: a hit returns the materialized page immediately, a
// miss enqueues a generation job and returns an empty "pending" result for
// the client to poll again. The gate never computes feeds inline.
package gate

import (
	"context"
	"errors"
	"fmt"

	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/feeds"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap"
)

// Validation errors, rejected synchronously and never enqueued.
var (
	ErrBadPage     = errors.New("invalid feed page number")
	ErrBadFeedType = errors.New("invalid feed type")
)

// Enqueuer submits jobs to the feed-generation topic.
type Enqueuer interface {
	Enqueue(ctx context.Context, id string, payload []byte) (string, error)
}

// Result is one gate response.
// Cached=false means generation was kicked off and the client should poll.
type Result struct {
	Entries []types.FeedEntry `json:"feed"`
	Cached  bool              `json:"cached"`
}

// Gate serves feed pages from the cache.
type Gate struct {
	Cache    *cache.Cache
	Config   *feeds.Config
	Producer Enqueuer
	Log      *zap.Logger

	// ObserveRead, if set, counts reads by result ("hit", "pending").
	ObserveRead func(result string)
}

// FeedPage returns one feed page for a user.
//
// The materialized list under the feed key holds the page that was last
// generated; a request for a different page misses its slice and triggers
// regeneration for that page. Duplicate enqueues coalesce on the job ID and
// are harmless besides: generation overwrites wholesale.
func (g *Gate) FeedPage(ctx context.Context, userID int64, feedType types.FeedType, page int) (*Result, error) {
	if page < 0 {
		return nil, ErrBadPage
	}
	switch feedType {
	case types.FeedMain, types.FeedLocality, types.FeedAchievements:
	default:
		// FeedAll is generation-only; it has no materialized key to read.
		return nil, fmt.Errorf("%w: %q", ErrBadFeedType, feedType)
	}
	profile := g.Config.Profile(feedType)
	if profile == nil {
		return nil, fmt.Errorf("%w: %q", ErrBadFeedType, feedType)
	}
	items, err := g.Cache.ListRange(ctx, cache.FeedKey(userID, feedType), 0, -1)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		entries, err := feeds.UnmarshalEntries(items)
		if err != nil {
			return nil, err
		}
		pageEntries := feeds.Paginate(entries, page, profile.PageSize)
		if len(pageEntries) > 0 {
			g.observe("hit")
			return &Result{Entries: pageEntries, Cached: true}, nil
		}
	}
	g.enqueueGeneration(ctx, userID, feedType, page)
	g.observe("pending")
	return &Result{Entries: []types.FeedEntry{}, Cached: false}, nil
}

// enqueueGeneration kicks off a feed job, fire-and-forget: a failed enqueue
// is logged and the read still degrades to a pending response.
func (g *Gate) enqueueGeneration(ctx context.Context, userID int64, feedType types.FeedType, page int) {
	job := &types.FeedJob{UserID: userID, Page: page, Type: feedType}
	payload, err := job.Marshal()
	if err != nil {
		g.Log.Error("Failed to encode feed job", zap.Error(err))
		return
	}
	if _, err := g.Producer.Enqueue(ctx, job.ID(), payload); err != nil {
		g.Log.Error("Failed to enqueue feed job",
			zap.String("job_id", job.ID()), zap.Error(err))
	}
}

func (g *Gate) observe(result string) {
	if g.ObserveRead != nil {
		g.ObserveRead(result)
	}
}
