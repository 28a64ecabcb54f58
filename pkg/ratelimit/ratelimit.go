// Package ratelimit estimates request rates with two sliding windows.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Limiter is a best-effort, lock-free request rate limiter. It keeps the
// request counts of the current and previous window and linearly weighs the
// previous one, approximating a true sliding window without per-request
// timestamps.
//
// Estimates are approximate on purpose; the limiter trades accuracy for
// zero allocation and no locking on the request path.
type Limiter struct {
	TargetRate float32 // allowed requests per second
	WindowSecs uint    // window size in seconds

	epoch  int64 // window offset
	w0, w1 int64 // previous and current window counts
}

// NewLimiter creates a limiter allowing targetRate requests per second,
// estimated over windows of windowSecs seconds.
func NewLimiter(targetRate float32, windowSecs uint) *Limiter {
	return &Limiter{TargetRate: targetRate, WindowSecs: windowSecs}
}

// Count registers x requests at unix time and returns how long the caller
// should back off to stay within the target rate (zero when within budget).
// Safe to call from many goroutines at once.
func (l *Limiter) Count(unix int64, x int64) time.Duration {
	epoch := unix / int64(l.WindowSecs)
	fastPath := true
	var w0, w1 int64
	for {
		// Shift the windows forward when a new epoch begins.
		savedEpoch := atomic.LoadInt64(&l.epoch)
		if savedEpoch >= epoch {
			break // fast path
		}
		fastPath = false
		if !atomic.CompareAndSwapInt64(&l.epoch, savedEpoch, epoch) {
			continue
		}
		if savedEpoch+1 == epoch {
			w1 = x
			w0 = atomic.SwapInt64(&l.w1, w1)
			atomic.StoreInt64(&l.w0, w0)
		} else {
			// Idle for more than a full window; both windows restart.
			atomic.StoreInt64(&l.w0, 0)
			atomic.StoreInt64(&l.w1, 0)
		}
	}
	if fastPath {
		w1 = atomic.AddInt64(&l.w1, x)
		w0 = atomic.LoadInt64(&l.w0)
	}
	// Weigh the previous window by how much of it still overlaps.
	overlap := 1.0 - float32(unix%int64(l.WindowSecs))/float32(l.WindowSecs)
	usage := overlap*float32(w0) + float32(w1)
	rate := usage / float32(l.WindowSecs)
	if rate <= l.TargetRate {
		return 0
	}
	ban := float32(l.WindowSecs) * (rate - l.TargetRate)
	return time.Duration(ban * float32(time.Second))
}
