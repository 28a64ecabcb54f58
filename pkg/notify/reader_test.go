package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/redistest"
	"go.aavaz.network/pulse/pkg/types"
)

type countingSource struct {
	records []*types.Notification
	calls   int
}

func (s *countingSource) Notifications(_ context.Context, userID int64, limit int) ([]*types.Notification, error) {
	s.calls++
	return s.records, nil
}

func TestReaderCacheAside(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	at := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &countingSource{records: []*types.Notification{
		{ID: 2, RecipientID: 7, ActorID: 3, Event: types.EventLike, PostID: 42, CreatedAt: at},
		{ID: 1, RecipientID: 7, ActorID: 4, Event: types.EventFollow, CreatedAt: at.Add(-time.Hour)},
	}}
	reader := &Reader{Cache: cache.New(rd.Client), Store: source, Limit: 100}

	// First read misses and fills the cache.
	got, err := reader.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, source.calls)

	// Second read is served from the cache.
	got, err = reader.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, 1, source.calls)

	// Invalidate forces the next read back to the store.
	require.NoError(t, reader.Invalidate(ctx, 7))
	_, err = reader.List(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}
