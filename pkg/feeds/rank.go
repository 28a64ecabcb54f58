// Package feeds materializes ranked, paginated per-user feed lists into the
// cache. Generation is idempotent: a feed key is always replaced wholesale,
// so concurrent regenerations of the same key are safe (last write wins).
package feeds

import (
	"math"
	"sort"
	"time"

	"go.aavaz.network/pulse/pkg/types"
)

// recencyWindowHours is the age after which the recency bonus decays to zero.
const recencyWindowHours = 72

// Score ranks a post by durable popularity plus time-decayed recency:
// likes*2 + comments*3 + max(0, 72 - ageHours). The recency term decays
// linearly and never goes negative.
func Score(likeCount, commentCount int64, age time.Duration) float64 {
	ageHours := age.Hours()
	recency := recencyWindowHours - ageHours
	if recency < 0 {
		recency = 0
	}
	return float64(likeCount)*2 + float64(commentCount)*3 + recency
}

// SortEntries orders entries for publication: score descending, with a
// deterministic tie-break of newer first, then lower post ID first.
// Regenerating from unchanged candidates yields an identical order.
func SortEntries(entries []types.FeedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Post.ID < entries[j].Post.ID
	})
}

// Paginate slices a sorted sequence into fixed-size pages and returns page
// number page (0-based). Out-of-range pages return an empty slice; the last
// page may be shorter than pageSize.
func Paginate(entries []types.FeedEntry, page, pageSize int) []types.FeedEntry {
	if page < 0 || pageSize <= 0 {
		return nil
	}
	start := page * pageSize
	if start >= len(entries) {
		return nil
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b types.Point) float64 {
	const earthRadiusMeters = 6371008.8
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
