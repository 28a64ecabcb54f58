package engage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/counters"
	"go.aavaz.network/pulse/pkg/redistest"
	"go.aavaz.network/pulse/pkg/store"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap/zaptest"
)

type memLikeStore struct {
	posts map[int64]*types.Post
	likes map[[2]int64]bool
}

func newMemLikeStore(posts ...*types.Post) *memLikeStore {
	m := &memLikeStore{
		posts: make(map[int64]*types.Post),
		likes: make(map[[2]int64]bool),
	}
	for _, post := range posts {
		m.posts[post.ID] = post
	}
	return m
}

func (m *memLikeStore) GetPost(_ context.Context, postID int64) (*types.Post, error) {
	post, ok := m.posts[postID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return post, nil
}

func (m *memLikeStore) ToggleLike(_ context.Context, userID, postID int64) (bool, bool, error) {
	key := [2]int64{userID, postID}
	if m.likes[key] {
		delete(m.likes, key)
		return false, true, nil
	}
	m.likes[key] = true
	return true, true, nil
}

type memEnqueuer struct {
	payloads [][]byte
}

func (m *memEnqueuer) Enqueue(_ context.Context, id string, payload []byte) (string, error) {
	m.payloads = append(m.payloads, payload)
	return id, nil
}

func testService(t *testing.T, rd *redistest.Redis, likes *memLikeStore) (*Service, *memEnqueuer) {
	enqueuer := &memEnqueuer{}
	c := cache.New(rd.Client)
	return &Service{
		Store:         likes,
		Buffer:        &counters.Buffer{Cache: c},
		Cache:         c,
		Notifications: enqueuer,
		Log:           zaptest.NewLogger(t),
	}, enqueuer
}

func TestToggleLike(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	likes := newMemLikeStore(&types.Post{ID: 42, AuthorID: 2})
	service, enqueuer := testService(t, rd, likes)

	// Like: +1 buffered, notification fanned out to the author.
	liked, err := service.ToggleLike(ctx, 7, 42)
	require.NoError(t, err)
	assert.True(t, liked)
	delta, err := service.Buffer.Delta(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delta)
	require.Len(t, enqueuer.payloads, 1)
	job, err := types.UnmarshalNotificationJob(enqueuer.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), job.RecipientID)
	assert.Equal(t, int64(7), job.ActorID)
	assert.Equal(t, types.EventLike, job.Event)
	assert.Equal(t, int64(42), job.PostID)

	// Unlike: the deltas cancel out and no notification is sent.
	liked, err = service.ToggleLike(ctx, 7, 42)
	require.NoError(t, err)
	assert.False(t, liked)
	delta, err = service.Buffer.Delta(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, delta)
	assert.Len(t, enqueuer.payloads, 1)
}

func TestToggleLikeMissingPost(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	service, enqueuer := testService(t, rd, newMemLikeStore())
	_, err := service.ToggleLike(ctx, 7, 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, enqueuer.payloads)
	delta, err := service.Buffer.Delta(ctx, 404)
	require.NoError(t, err)
	assert.Zero(t, delta)
}

func TestToggleLikeSelf(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	likes := newMemLikeStore(&types.Post{ID: 42, AuthorID: 7})
	service, enqueuer := testService(t, rd, likes)

	// Liking your own post still counts; suppression of the
	// self-notification is the fan-out worker's job.
	liked, err := service.ToggleLike(ctx, 7, 42)
	require.NoError(t, err)
	assert.True(t, liked)
	require.Len(t, enqueuer.payloads, 1)
	job, err := types.UnmarshalNotificationJob(enqueuer.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, job.RecipientID, job.ActorID)
}
