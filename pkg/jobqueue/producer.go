package jobqueue

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Producer adds jobs to a topic.
// It is safe to run multiple instances on the same topic.
type Producer struct {
	// Required components
	Redis *redis.Client
	// Required config
	Keys Keys
}

// Enqueue adds a payload under the given job ID.
// An empty ID gets a random one. Re-enqueuing a pending ID overwrites its
// payload; enqueuing is fire-and-forget from the caller's perspective.
func (p *Producer) Enqueue(ctx context.Context, id string, payload []byte) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	// Script: store payload and mark pending in one step.
	// Key 1: Payload hash
	// Key 2: Pending set
	// Argument 1: Job ID
	// Argument 2: Payload
	const enqueueScript = `
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("SADD", KEYS[2], ARGV[1])
return 1
`
	err := p.Redis.Eval(ctx, enqueueScript,
		[]string{p.Keys.PayloadHash, p.Keys.PendingSet},
		id, payload).Err()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", id, err)
	}
	return id, nil
}

// PendingCount returns the number of jobs waiting to be claimed.
func (p *Producer) PendingCount(ctx context.Context) (int64, error) {
	return p.Redis.SCard(ctx, p.Keys.PendingSet).Result()
}

// DeadLetters returns the dead-lettered payloads by job ID.
func (p *Producer) DeadLetters(ctx context.Context) (map[string]string, error) {
	return p.Redis.HGetAll(ctx, p.Keys.DeadHash).Result()
}
