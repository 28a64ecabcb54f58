package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/feeds"
	"go.aavaz.network/pulse/pkg/redistest"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap/zaptest"
)

type memEnqueuer struct {
	jobs map[string][]byte
}

func (m *memEnqueuer) Enqueue(_ context.Context, id string, payload []byte) (string, error) {
	if m.jobs == nil {
		m.jobs = make(map[string][]byte)
	}
	m.jobs[id] = payload
	return id, nil
}

func testGate(t *testing.T, rd *redistest.Redis) (*Gate, *memEnqueuer) {
	enqueuer := &memEnqueuer{}
	return &Gate{
		Cache:    cache.New(rd.Client),
		Config:   feeds.DefaultConfig(),
		Producer: enqueuer,
		Log:      zaptest.NewLogger(t),
	}, enqueuer
}

func publishFeed(t *testing.T, c *cache.Cache, userID int64, feedType types.FeedType, entries []types.FeedEntry) {
	items, err := feeds.MarshalEntries(entries)
	require.NoError(t, err)
	require.NoError(t, c.ReplaceList(context.Background(),
		cache.FeedKey(userID, feedType), items, time.Minute))
}

func TestGateRejectsBadRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)
	g, enqueuer := testGate(t, rd)

	// Negative pages are rejected before anything is enqueued.
	_, err := g.FeedPage(ctx, 7, types.FeedMain, -1)
	assert.ErrorIs(t, err, ErrBadPage)

	_, err = g.FeedPage(ctx, 7, "trending", 0)
	assert.ErrorIs(t, err, ErrBadFeedType)

	// The fan-out type has no materialized key to read.
	_, err = g.FeedPage(ctx, 7, types.FeedAll, 0)
	assert.ErrorIs(t, err, ErrBadFeedType)

	assert.Empty(t, enqueuer.jobs)
}

func TestGateMissEnqueuesGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)
	g, enqueuer := testGate(t, rd)

	result, err := g.FeedPage(ctx, 7, types.FeedMain, 0)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Empty(t, result.Entries)
	assert.Contains(t, enqueuer.jobs, "feed:7:main:0")

	// A repeated miss coalesces on the same deterministic job ID.
	_, err = g.FeedPage(ctx, 7, types.FeedMain, 0)
	require.NoError(t, err)
	assert.Len(t, enqueuer.jobs, 1)
}

func TestGateHit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)
	g, enqueuer := testGate(t, rd)

	entries := make([]types.FeedEntry, 3)
	for i := range entries {
		entries[i].Post.ID = int64(i + 1)
		entries[i].Score = float64(100 - i)
	}
	publishFeed(t, g.Cache, 7, types.FeedMain, entries)

	result, err := g.FeedPage(ctx, 7, types.FeedMain, 0)
	require.NoError(t, err)
	assert.True(t, result.Cached)
	require.Len(t, result.Entries, 3)
	assert.Equal(t, int64(1), result.Entries[0].Post.ID)
	assert.Empty(t, enqueuer.jobs)

	// Feeds are per-user: another user still misses.
	result, err = g.FeedPage(ctx, 8, types.FeedMain, 0)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Contains(t, enqueuer.jobs, "feed:8:main:0")
}

func TestGatePageBeyondMaterialized(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)
	g, enqueuer := testGate(t, rd)

	// The materialized list covers page 0 only.
	entries := make([]types.FeedEntry, 10)
	for i := range entries {
		entries[i].Post.ID = int64(i + 1)
	}
	publishFeed(t, g.Cache, 7, types.FeedMain, entries)

	// A request past the materialized slice regenerates for that page.
	result, err := g.FeedPage(ctx, 7, types.FeedMain, 2)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Contains(t, enqueuer.jobs, "feed:7:main:2")
}
