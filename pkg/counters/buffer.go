// Package counters coalesces like/unlike toggles into buffered per-post
// deltas and periodically reconciles them into the durable store.
//
// Between flush cycles the true count of a post equals the durable count
// plus its buffered delta. After a clean flush the buffered delta is zero.
package counters

import (
	"context"
	"fmt"
	"strconv"

	"go.aavaz.network/pulse/pkg/cache"
)

// Buffer accumulates engagement deltas in the shared cache, one hash field
// per post. Increments are atomic; reads for flushing use an atomic
// fetch-and-clear so two flushers can never both apply the same delta.
type Buffer struct {
	Cache *cache.Cache
}

func field(postID int64) string {
	return strconv.FormatInt(postID, 10)
}

// Add buffers a delta for a post. Toggles call this with +1 or -1;
// the request path never writes the durable counter directly.
func (b *Buffer) Add(ctx context.Context, postID int64, delta int64) error {
	_, err := b.Cache.IncrField(ctx, cache.LikeCountKey, field(postID), delta)
	return err
}

// Delta reads the buffered delta for a post without clearing it.
// An absent field reads as zero.
func (b *Buffer) Delta(ctx context.Context, postID int64) (int64, error) {
	n, _, err := b.Cache.HashField(ctx, cache.LikeCountKey, field(postID))
	return n, err
}

// PostIDs snapshots the posts that currently have a buffered delta.
func (b *Buffer) PostIDs(ctx context.Context) ([]int64, error) {
	fields, err := b.Cache.HashFields(ctx, cache.LikeCountKey)
	if err != nil {
		return nil, err
	}
	postIDs := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid post ID in delta buffer: %q", f)
		}
		postIDs = append(postIDs, id)
	}
	return postIDs, nil
}

// FetchClear atomically takes the buffered delta of a post out of the
// buffer. Returns ok=false when another flusher already took it.
func (b *Buffer) FetchClear(ctx context.Context, postID int64) (int64, bool, error) {
	return b.Cache.FetchClearField(ctx, cache.LikeCountKey, field(postID))
}

// Restore puts a delta back after a failed durable write, so the next
// flush cycle retries it. Restoring on top of newer toggles is safe:
// deltas are commutative.
func (b *Buffer) Restore(ctx context.Context, postID int64, delta int64) error {
	return b.Add(ctx, postID, delta)
}
