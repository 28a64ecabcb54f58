package authorcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.aavaz.network/pulse/pkg/types"
)

type countingSource struct {
	authors map[int64]types.Author
	queries [][]int64
}

func (s *countingSource) AuthorsByID(_ context.Context, userIDs []int64) (map[int64]types.Author, error) {
	s.queries = append(s.queries, userIDs)
	result := make(map[int64]types.Author)
	for _, id := range userIDs {
		if author, ok := s.authors[id]; ok {
			result[id] = author
		}
	}
	return result, nil
}

func TestAuthorCache(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{authors: map[int64]types.Author{
		1: {ID: 1, Username: "asha"},
		2: {ID: 2, Username: "vikram"},
	}}
	c, err := New(source, 16, time.Minute)
	require.NoError(t, err)

	authors, err := c.Get(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, authors, 2)
	assert.Equal(t, "asha", authors[1].Username)
	require.Len(t, source.queries, 1)
	assert.Equal(t, []int64{1, 2, 3}, source.queries[0])

	// Known authors are served from the cache; unknown IDs miss again.
	authors, err = c.Get(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, authors, 2)
	require.Len(t, source.queries, 2)
	assert.Equal(t, []int64{3}, source.queries[1])

	assert.Equal(t, 2, c.Len())
}

func TestAuthorCacheExpiry(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{authors: map[int64]types.Author{
		1: {ID: 1, Username: "asha"},
	}}
	c, err := New(source, 16, 10*time.Millisecond)
	require.NoError(t, err)

	_, err = c.Get(ctx, []int64{1})
	require.NoError(t, err)
	require.Len(t, source.queries, 1)

	time.Sleep(20 * time.Millisecond)

	// The entry expired; the next read goes back to the source.
	authors, err := c.Get(ctx, []int64{1})
	require.NoError(t, err)
	assert.Len(t, authors, 1)
	assert.Len(t, source.queries, 2)
}

func TestAuthorCacheEviction(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{authors: map[int64]types.Author{
		1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3},
	}}
	c, err := New(source, 2, time.Minute)
	require.NoError(t, err)

	_, err = c.Get(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}
