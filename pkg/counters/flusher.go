package counters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.aavaz.network/pulse/pkg/store"
	"go.uber.org/zap"
)

// CounterStore applies reconciled deltas to the durable store.
type CounterStore interface {
	ApplyLikeDelta(ctx context.Context, postID int64, delta int64) error
}

// ErrFlushInProgress gets raised when a flush cycle is requested while one
// is already running. Periodic ticks treat it as a skip, not a failure.
var ErrFlushInProgress = errors.New("flush already in progress")

// Flusher is the periodic task draining the delta buffer into the store.
//
// A cycle snapshots the buffered posts, then works through them in bounded
// batches: each delta is atomically taken out of the buffer and applied with
// one in-place durable update. A failed durable write puts the delta back so
// the next cycle retries it; a delta whose post no longer exists is dropped.
//
// Crash window: a crash after fetch-and-clear but before the durable write
// loses that delta. That is the accepted tradeoff of persist-then-clear.
type Flusher struct {
	// Required components
	Buffer *Buffer
	Store  CounterStore
	Log    *zap.Logger
	// Required config
	Interval  time.Duration // flush period
	BatchSize int           // max concurrent durable writes per batch
	// Optional hooks
	ObserveCycle func(result string) // "ok", "error", "skipped"
	ObserveItems func(flushed int)

	running int32
}

// DefaultInterval and DefaultBatchSize match the deployed flush policy.
const (
	DefaultInterval  = 5 * time.Second
	DefaultBatchSize = 20
)

// Run flushes on a fixed interval until the context is canceled, then runs
// one final drain cycle so shutdown does not strand buffered deltas.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()
	f.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), f.Interval)
			f.tick(drainCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *Flusher) tick(ctx context.Context) {
	flushed, err := f.Flush(ctx)
	switch {
	case errors.Is(err, ErrFlushInProgress):
		f.Log.Debug("Skipping flush tick, cycle still running")
		f.observeCycle("skipped")
	case err != nil:
		f.Log.Error("Flush cycle failed", zap.Error(err))
		f.observeCycle("error")
	default:
		if flushed > 0 {
			f.Log.Info("Flushed like deltas", zap.Int("posts", flushed))
		}
		f.observeCycle("ok")
	}
}

// Flush runs one flush cycle and returns the number of posts whose deltas
// were applied. Only one cycle runs at a time; concurrent calls get
// ErrFlushInProgress.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	if !atomic.CompareAndSwapInt32(&f.running, 0, 1) {
		return 0, ErrFlushInProgress
	}
	defer atomic.StoreInt32(&f.running, 0)
	postIDs, err := f.Buffer.PostIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot delta buffer: %w", err)
	}
	var flushed int
	for start := 0; start < len(postIDs); start += f.BatchSize {
		end := start + f.BatchSize
		if end > len(postIDs) {
			end = len(postIDs)
		}
		n, err := f.flushBatch(ctx, postIDs[start:end])
		flushed += n
		if err != nil {
			return flushed, err
		}
	}
	if f.ObserveItems != nil && flushed > 0 {
		f.ObserveItems(flushed)
	}
	return flushed, nil
}

// flushBatch applies one bounded batch of deltas concurrently.
func (f *Flusher) flushBatch(ctx context.Context, postIDs []int64) (int, error) {
	var wg sync.WaitGroup
	errs := make([]error, len(postIDs))
	applied := make([]bool, len(postIDs))
	for i, postID := range postIDs {
		wg.Add(1)
		go func(i int, postID int64) {
			defer wg.Done()
			applied[i], errs[i] = f.flushOne(ctx, postID)
		}(i, postID)
	}
	wg.Wait()
	var flushed int
	for _, ok := range applied {
		if ok {
			flushed++
		}
	}
	for _, err := range errs {
		if err != nil {
			return flushed, err
		}
	}
	return flushed, nil
}

func (f *Flusher) flushOne(ctx context.Context, postID int64) (bool, error) {
	delta, ok, err := f.Buffer.FetchClear(ctx, postID)
	if err != nil {
		return false, fmt.Errorf("fetch-clear delta for post %d: %w", postID, err)
	}
	if !ok || delta == 0 {
		// Zero or already-taken delta: the clear itself was the cleanup.
		return false, nil
	}
	if err := f.Store.ApplyLikeDelta(ctx, postID, delta); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Post vanished; its buffered delta has nowhere to go.
			f.Log.Warn("Dropping delta for missing post",
				zap.Int64("post", postID), zap.Int64("delta", delta))
			return false, nil
		}
		// Put the delta back so the next cycle retries.
		if restoreErr := f.Buffer.Restore(ctx, postID, delta); restoreErr != nil {
			f.Log.Error("Failed to restore delta after write failure",
				zap.Int64("post", postID), zap.Int64("delta", delta),
				zap.Error(restoreErr))
		}
		return false, fmt.Errorf("apply delta %+d to post %d: %w", delta, postID, err)
	}
	return true, nil
}

func (f *Flusher) observeCycle(result string) {
	if f.ObserveCycle != nil {
		f.ObserveCycle(result)
	}
}
