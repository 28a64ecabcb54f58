// Package jobqueue runs a lightweight at-least-once job queue on Redis.
//
// Components
//
// Redis 6 or newer is required. Producers enqueue jobs on a named topic and
// any number of competing consumers claim them for processing. At least one
// ExpirationWorker must run per topic to redeliver timed-out claims.
// The multi-step queue transitions run as Redis Lua scripts so concurrent
// access is safe without client-side locking.
//
// Properties
//
// A topic holds a set of pending job IDs plus a payload per job. Consumers
// claim jobs with a static claim expiration time. A claim ends by consumer
// acknowledgement (ack), rejection (nack) or expiration (timeout). Rejected
// and expired jobs return to pending until their attempt count reaches
// MaxAttempts, then they are dead-lettered.
//
// Delivery is at-least-once: handlers must be idempotent. No ordering is
// guaranteed between jobs of a topic or across redeliveries.
//
// Job IDs are free-form strings. Enqueuing an ID that is already pending
// overwrites its payload in place, so producers with deterministic IDs get
// duplicate-enqueue coalescing for free.
package jobqueue

import (
	"time"
)

// Topic names used by the engine.
const (
	TopicFeedGeneration = "feed-generation"
	TopicNotifications  = "notifications"
)

// Keys holds the Redis keys backing one topic.
type Keys struct {
	PendingSet   string // pending job IDs
	PayloadHash  string // job ID -> payload
	AttemptsHash string // job ID -> delivery attempts
	InflightHash string // job ID -> claimer (inflight only)
	ExpireList   string // "jobID:expiry" entries (inflight only)
	DeadHash     string // job ID -> payload, after MaxAttempts
}

// KeysForTopic creates the Keys of a named topic.
func KeysForTopic(topic string) Keys {
	prefix := "jobs:" + topic
	return Keys{
		PendingSet:   prefix + ":pending",
		PayloadHash:  prefix + ":payload",
		AttemptsHash: prefix + ":attempts",
		InflightHash: prefix + ":inflight",
		ExpireList:   prefix + ":expire",
		DeadHash:     prefix + ":dead",
	}
}

// Options holds the queue and retry policy settings.
// The retry policy is explicit configuration, not a framework default.
type Options struct {
	ClaimTTL       uint          // seconds a claim may stay inflight before redelivery
	MaxAttempts    int64         // delivery attempts before dead-lettering
	ClaimBatch     uint          // max jobs claimed per consumer poll
	HandlerTimeout time.Duration // per-job handler time budget
	// Consumer poll backoff while the topic is empty.
	EmptyBackoffMin time.Duration
	EmptyBackoffMax time.Duration
	// Expiration worker
	ExpireBatch        uint          // max claims expired per script run
	ExpireEmptyBackoff time.Duration // sleep when the expire list is empty
}

// DefaultOptions returns the default queue options.
// Only pass by value, not reference, to avoid modifying this globally.
var DefaultOptions = Options{
	ClaimTTL:           60,
	MaxAttempts:        5,
	ClaimBatch:         16,
	HandlerTimeout:     30 * time.Second,
	EmptyBackoffMin:    100 * time.Millisecond,
	EmptyBackoffMax:    2 * time.Second,
	ExpireBatch:        128,
	ExpireEmptyBackoff: 2 * time.Second,
}

// Job is one claimed delivery of a queued payload.
type Job struct {
	ID      string
	Payload []byte
}
