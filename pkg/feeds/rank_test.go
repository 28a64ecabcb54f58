package feeds

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.aavaz.network/pulse/pkg/types"
)

func TestScore(t *testing.T) {
	// Fresh post: full recency bonus.
	assert.Equal(t, float64(107), Score(10, 5, 0))
	// One day old: bonus decayed by 24.
	assert.Equal(t, float64(83), Score(10, 5, 24*time.Hour))
	// At the edge of the window the bonus is gone.
	assert.Equal(t, float64(35), Score(10, 5, 72*time.Hour))
	// Beyond the window the bonus never goes negative.
	assert.Equal(t, float64(35), Score(10, 5, 100*time.Hour))
	assert.Equal(t, float64(0), Score(0, 0, 200*time.Hour))
}

func TestSortEntries(t *testing.T) {
	at := time.Date(2021, 3, 14, 10, 0, 0, 0, time.UTC)
	entries := []types.FeedEntry{
		{Post: types.Post{ID: 4, CreatedAt: at}, Score: 10},
		{Post: types.Post{ID: 1, CreatedAt: at}, Score: 50},
		{Post: types.Post{ID: 3, CreatedAt: at.Add(time.Hour)}, Score: 10},
		{Post: types.Post{ID: 2, CreatedAt: at}, Score: 10},
	}
	SortEntries(entries)
	ids := make([]int64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.Post.ID
	}
	// Score first, then newer first, then lower ID.
	assert.Equal(t, []int64{1, 3, 2, 4}, ids)

	// Sorting again does not change the order.
	SortEntries(entries)
	for i, entry := range entries {
		assert.Equal(t, ids[i], entry.Post.ID)
	}
}

func TestPaginate(t *testing.T) {
	entries := make([]types.FeedEntry, 1000)
	for i := range entries {
		entries[i].Post.ID = int64(i)
	}
	page0 := Paginate(entries, 0, 400)
	assert.Len(t, page0, 400)
	assert.Equal(t, int64(0), page0[0].Post.ID)
	assert.Equal(t, int64(399), page0[399].Post.ID)

	page2 := Paginate(entries, 2, 400)
	assert.Len(t, page2, 200)
	assert.Equal(t, int64(800), page2[0].Post.ID)
	assert.Equal(t, int64(999), page2[199].Post.ID)

	assert.Empty(t, Paginate(entries, 3, 400))
	assert.Empty(t, Paginate(entries, -1, 400))
	assert.Empty(t, Paginate(entries, 0, 0))
}

func TestHaversine(t *testing.T) {
	home := types.Point{Lng: 77.5, Lat: 12.9}
	for _, tc := range []struct {
		to     types.Point
		meters float64
	}{
		{types.Point{Lng: 77.5, Lat: 12.9}, 0},
		{types.Point{Lng: 77.5, Lat: 12.99}, 10008},
		{types.Point{Lng: 77.5, Lat: 13.08}, 20015},
		{types.Point{Lng: 77.59, Lat: 12.9}, 9756},
	} {
		t.Run(fmt.Sprintf("%v", tc.to), func(t *testing.T) {
			assert.InDelta(t, tc.meters, Haversine(home, tc.to), 30)
		})
	}
}
