package feeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap"
)

// PostSource supplies ranking candidates, usually the durable store.
type PostSource interface {
	TopPosts(ctx context.Context, limit int) ([]*types.Post, error)
	PostsByKind(ctx context.Context, kind types.PostKind, limit int) ([]*types.Post, error)
	PostsNearCoarse(ctx context.Context, at types.Point, radiusMeters float64, limit int) ([]*types.Post, error)
}

// AuthorSource resolves author records for hydration.
type AuthorSource interface {
	Get(ctx context.Context, userIDs []int64) (map[int64]types.Author, error)
}

// Generator materializes feeds: fetch candidates, score, sort, paginate,
// publish. Publication replaces the feed key wholesale; any error before
// that leaves the cache untouched.
type Generator struct {
	Posts   PostSource
	Authors AuthorSource
	Cache   *cache.Cache
	Config  *Config
	Log     *zap.Logger

	// Now overrides the clock (tests). Nil means time.Now.
	Now func() time.Time
	// ObserveBuild, if set, records the duration of each publication.
	ObserveBuild func(feedType types.FeedType, d time.Duration)
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Generate materializes one feed page for a user.
// A locality request for a user without a home coordinate is a silent no-op.
func (g *Generator) Generate(ctx context.Context, user *types.User, feedType types.FeedType, page int) error {
	if feedType == types.FeedAll {
		return g.GenerateAll(ctx, user, page)
	}
	profile := g.Config.Profile(feedType)
	if profile == nil {
		return fmt.Errorf("%w: no profile for feed type %q", ErrUnknownFeedType, feedType)
	}
	start := time.Now()
	candidates, err := g.fetchCandidates(ctx, user, profile)
	if err != nil {
		return fmt.Errorf("fetch %s candidates: %w", feedType, err)
	}
	if candidates == nil && feedType == types.FeedLocality {
		g.Log.Debug("Skipping locality feed, user has no home coordinate",
			zap.Int64("user", user.ID))
		return nil
	}
	entries, err := g.hydrate(ctx, candidates)
	if err != nil {
		return fmt.Errorf("hydrate %s candidates: %w", feedType, err)
	}
	SortEntries(entries)
	pageEntries := Paginate(entries, page, profile.PageSize)
	if err := g.publish(ctx, user.ID, feedType, pageEntries, profile.TTL); err != nil {
		return fmt.Errorf("publish %s feed: %w", feedType, err)
	}
	g.Log.Info("Materialized feed",
		zap.Int64("user", user.ID),
		zap.String("type", string(feedType)),
		zap.Int("page", page),
		zap.Int("candidates", len(entries)),
		zap.Int("published", len(pageEntries)))
	if g.ObserveBuild != nil {
		g.ObserveBuild(feedType, time.Since(start))
	}
	return nil
}

// GenerateAll materializes all three feed types concurrently,
// each to its own independent key.
func (g *Generator) GenerateAll(ctx context.Context, user *types.User, page int) error {
	feedTypes := []types.FeedType{types.FeedMain, types.FeedLocality, types.FeedAchievements}
	errs := make([]error, len(feedTypes))
	var wg sync.WaitGroup
	for i, feedType := range feedTypes {
		wg.Add(1)
		go func(i int, feedType types.FeedType) {
			defer wg.Done()
			errs[i] = g.Generate(ctx, user, feedType, page)
		}(i, feedType)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) fetchCandidates(ctx context.Context, user *types.User, profile *Profile) ([]*types.Post, error) {
	switch profile.Type {
	case types.FeedMain:
		return g.Posts.TopPosts(ctx, profile.CandidateLimit)
	case types.FeedAchievements:
		return g.Posts.PostsByKind(ctx, types.KindAchievement, profile.CandidateLimit)
	case types.FeedLocality:
		if user.Home == nil {
			return nil, nil
		}
		coarse, err := g.Posts.PostsNearCoarse(ctx, *user.Home, profile.RadiusMeters, profile.CandidateLimit)
		if err != nil {
			return nil, err
		}
		// The coarse query over-selects; cut to the exact radius.
		nearby := make([]*types.Post, 0, len(coarse))
		for _, post := range coarse {
			if post.Location == nil {
				continue
			}
			if Haversine(*user.Home, *post.Location) <= profile.RadiusMeters {
				nearby = append(nearby, post)
			}
		}
		if len(nearby) == 0 {
			// Distinguish "no nearby posts" from "no home coordinate".
			return []*types.Post{}, nil
		}
		return nearby, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeedType, profile.Type)
	}
}

func (g *Generator) hydrate(ctx context.Context, posts []*types.Post) ([]types.FeedEntry, error) {
	authorIDs := make([]int64, 0, len(posts))
	seen := make(map[int64]bool, len(posts))
	for _, post := range posts {
		if !seen[post.AuthorID] {
			seen[post.AuthorID] = true
			authorIDs = append(authorIDs, post.AuthorID)
		}
	}
	authors, err := g.Authors.Get(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	now := g.now()
	entries := make([]types.FeedEntry, 0, len(posts))
	for _, post := range posts {
		entries = append(entries, types.FeedEntry{
			Post:   *post,
			Author: authors[post.AuthorID],
			Score:  Score(post.LikeCount, post.CommentCount, now.Sub(post.CreatedAt)),
		})
	}
	return entries, nil
}

func (g *Generator) publish(ctx context.Context, userID int64, feedType types.FeedType, entries []types.FeedEntry, ttl time.Duration) error {
	items, err := MarshalEntries(entries)
	if err != nil {
		return err
	}
	return g.Cache.ReplaceList(ctx, cache.FeedKey(userID, feedType), items, ttl)
}
