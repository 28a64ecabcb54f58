package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Consumers claim and settle jobs on a topic.
// Many consumers may compete on the same keys.
type Consumers struct {
	// Required components
	Redis *redis.Client
	// Required config
	Keys Keys
	Opts Options
}

// ErrClaimedByOther gets raised when a consumer tries to settle a claim it
// does not own (typically after its claim expired and was redelivered).
var ErrClaimedByOther = errors.New("claimed by other")

// ClaimJobs attaches up to n pending jobs to a claimer and returns them.
func (c *Consumers) ClaimJobs(ctx context.Context, claimer string, n uint) ([]Job, error) {
	// Script: bulk move jobs from pending to inflight.
	// Key 1: Pending set
	// Key 2: In-flight hash
	// Key 3: Expire list
	// Key 4: Payload hash
	// Key 5: Attempts hash
	// Argument 1: Claimer string
	// Argument 2: Job count
	// Argument 3: Claim expiration epoch
	// Returns a flat list of (job ID, payload) pairs.
	const claimScript = `
redis.replicate_commands()
local ret = {}
for i=1,tonumber(ARGV[2]),1 do
	local id = redis.call("SRANDMEMBER", KEYS[1])
	if not id then break end
	redis.call("SREM", KEYS[1], id)
	local payload = redis.call("HGET", KEYS[4], id)
	if payload then
		redis.call("HSET", KEYS[2], id, ARGV[1])
		redis.call("HINCRBY", KEYS[5], id, 1)
		redis.call("LPUSH", KEYS[3], string.format("%s:%d", id, ARGV[3]))
		table.insert(ret, id)
		table.insert(ret, payload)
	end
end
return ret
`
	expTime := time.Now().Unix() + int64(c.Opts.ClaimTTL)
	res, err := c.Redis.Eval(ctx, claimScript,
		[]string{c.Keys.PendingSet, c.Keys.InflightHash, c.Keys.ExpireList,
			c.Keys.PayloadHash, c.Keys.AttemptsHash},
		claimer, int64(n), expTime).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs via Lua: %w", err)
	}
	parts, ok := res.([]interface{})
	if !ok || len(parts)%2 != 0 {
		return nil, fmt.Errorf("failed to claim jobs via Lua: invalid return %#v", res)
	}
	jobs := make([]Job, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		id, ok := parts[i].(string)
		if !ok {
			return nil, fmt.Errorf("invalid job ID in claim batch: %#v", parts[i])
		}
		payload, ok := parts[i+1].(string)
		if !ok {
			return nil, fmt.Errorf("invalid payload in claim batch: %#v", parts[i+1])
		}
		jobs = append(jobs, Job{ID: id, Payload: []byte(payload)})
	}
	return jobs, nil
}

// Ack marks jobs as successfully completed and removes them from the topic.
// Returns ErrClaimedByOther if any of the jobs are claimed by another claimer.
func (c *Consumers) Ack(ctx context.Context, claimer string, jobIDs []string) error {
	// Script: bulk remove completed jobs.
	// Key 1: In-flight hash
	// Key 2: Payload hash
	// Key 3: Attempts hash
	// Argument 1: Claimer string
	// Arguments 2..n: Job IDs
	// Returns whether the claimer matched.
	const ackScript = `
redis.replicate_commands()
local owned = redis.call("HMGET", KEYS[1], unpack(ARGV, 2))
for i=1,#owned,1 do
	if owned[i] ~= ARGV[1] then
		return 0
	end
end
redis.call("HDEL", KEYS[1], unpack(ARGV, 2))
redis.call("HDEL", KEYS[2], unpack(ARGV, 2))
redis.call("HDEL", KEYS[3], unpack(ARGV, 2))
return 1
`
	return c.settle(ctx, ackScript,
		[]string{c.Keys.InflightHash, c.Keys.PayloadHash, c.Keys.AttemptsHash},
		claimer, jobIDs)
}

// Nack rejects claimed jobs. They return to pending immediately, or get
// dead-lettered once their attempt count reached MaxAttempts.
func (c *Consumers) Nack(ctx context.Context, claimer string, jobIDs []string) error {
	// Script: bulk reject claimed jobs with dead-letter cutoff.
	// Key 1: In-flight hash
	// Key 2: Pending set
	// Key 3: Payload hash
	// Key 4: Attempts hash
	// Key 5: Dead-letter hash
	// Argument 1: Claimer string
	// Argument 2: Max attempts
	// Arguments 3..n: Job IDs
	// Returns whether the claimer matched.
	const nackScript = `
redis.replicate_commands()
local owned = redis.call("HMGET", KEYS[1], unpack(ARGV, 3))
for i=1,#owned,1 do
	if owned[i] ~= ARGV[1] then
		return 0
	end
end
for i=3,#ARGV,1 do
	local id = ARGV[i]
	redis.call("HDEL", KEYS[1], id)
	local att = tonumber(redis.call("HGET", KEYS[4], id) or "0")
	if att >= tonumber(ARGV[2]) then
		local payload = redis.call("HGET", KEYS[3], id)
		if payload then
			redis.call("HSET", KEYS[5], id, payload)
		end
		redis.call("HDEL", KEYS[3], id)
		redis.call("HDEL", KEYS[4], id)
	else
		redis.call("SADD", KEYS[2], id)
	end
end
return 1
`
	keys := []string{c.Keys.InflightHash, c.Keys.PendingSet, c.Keys.PayloadHash,
		c.Keys.AttemptsHash, c.Keys.DeadHash}
	if len(jobIDs) == 0 {
		return nil
	}
	varargs := make([]interface{}, 0, len(jobIDs)+2)
	varargs = append(varargs, claimer, c.Opts.MaxAttempts)
	for _, id := range jobIDs {
		varargs = append(varargs, id)
	}
	res, err := c.Redis.Eval(ctx, nackScript, keys, varargs...).Result()
	if err != nil {
		return fmt.Errorf("failed to nack jobs via Lua: %w", err)
	}
	return checkSettleReturn(res)
}

func (c *Consumers) settle(ctx context.Context, script string, keys []string, claimer string, jobIDs []string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	varargs := make([]interface{}, len(jobIDs)+1)
	varargs[0] = claimer
	for i, id := range jobIDs {
		varargs[i+1] = id
	}
	res, err := c.Redis.Eval(ctx, script, keys, varargs...).Result()
	if err != nil {
		return fmt.Errorf("failed to settle jobs via Lua: %w", err)
	}
	return checkSettleReturn(res)
}

func checkSettleReturn(res interface{}) error {
	authzed, ok := res.(int64)
	if !ok {
		return fmt.Errorf("invalid return from settle script: %#v", res)
	}
	if authzed == 0 {
		return ErrClaimedByOther
	}
	return nil
}
