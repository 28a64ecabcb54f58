package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Dispositions passed to the ExpireCallback.
const (
	DispositionRequeue = "requeue"
	DispositionDead    = "dead"
)

// ExpireCallback is called for each claim the worker expired,
// with disposition DispositionRequeue or DispositionDead.
type ExpireCallback func(ctx context.Context, jobID string, disposition string) error

// ExpirationWorker loops over the expiration event queue and redelivers
// jobs whose claim timed out, dead-lettering jobs out of attempts.
// It is safe to run multiple instances on the same keys.
type ExpirationWorker struct {
	// Required components
	Log   *zap.Logger
	Redis *redis.Client
	// Optional hook
	Callback ExpireCallback
	// Required config
	Keys Keys
	Opts Options
}

// Run processes expirations until the context is canceled.
func (e *ExpirationWorker) Run(ctx context.Context) error {
	for {
		if err := e.step(ctx); err != nil {
			return err
		}
	}
}

// step runs the expiration Lua script once, processes callbacks,
// and sleeps the minimum time until the next expiration can occur.
func (e *ExpirationWorker) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Script: drop and settle all claims that have expired.
	// Key 1: Expire list
	// Key 2: In-flight hash
	// Key 3: Pending set
	// Key 4: Payload hash
	// Key 5: Attempts hash
	// Key 6: Dead-letter hash
	// Argument 1: Batch size (max script iterations)
	// Argument 2: Unix epoch
	// Argument 3: Max attempts
	// Returns a flat table of (disposition, job ID) pairs,
	// terminated by (seconds until next expiration or -1, "sleep").
	const expireScript = `
redis.replicate_commands()
local ret = {}
local sleep = -1
for i=1,tonumber(ARGV[1]),1 do
	local item = redis.call("LINDEX", KEYS[1], -1)
	if not item then break end
	local id, exp = string.match(item, "^(.*):(%-?%d+)$")
	if not id then error("invalid expire entry: " .. item) end
	exp = tonumber(exp)
	local now = tonumber(ARGV[2])
	sleep = exp - now
	if exp > now then break end
	redis.call("LTRIM", KEYS[1], 0, -2)
	local claim = redis.call("HGET", KEYS[2], id)
	if claim then
		redis.call("HDEL", KEYS[2], id)
		local att = tonumber(redis.call("HGET", KEYS[5], id) or "0")
		if att >= tonumber(ARGV[3]) then
			local payload = redis.call("HGET", KEYS[4], id)
			if payload then
				redis.call("HSET", KEYS[6], id, payload)
			end
			redis.call("HDEL", KEYS[4], id)
			redis.call("HDEL", KEYS[5], id)
			table.insert(ret, "dead")
			table.insert(ret, id)
		else
			redis.call("SADD", KEYS[3], id)
			table.insert(ret, "requeue")
			table.insert(ret, id)
		end
	end
end
table.insert(ret, sleep)
table.insert(ret, "sleep")
return ret
`
	now := time.Now().Unix()
	res, err := e.Redis.Eval(ctx, expireScript,
		[]string{e.Keys.ExpireList, e.Keys.InflightHash, e.Keys.PendingSet,
			e.Keys.PayloadHash, e.Keys.AttemptsHash, e.Keys.DeadHash},
		e.Opts.ExpireBatch, now, e.Opts.MaxAttempts,
	).Result()
	if err != nil {
		return fmt.Errorf("failed to expire claims via Lua: %w", err)
	}
	parts, ok := res.([]interface{})
	if !ok || len(parts) < 2 || len(parts)%2 != 0 {
		return fmt.Errorf("failed to expire claims via Lua: invalid return %#v", res)
	}
	var sleepSecs int64
	var gotSleep bool
	for i := 0; i < len(parts); i += 2 {
		tag, ok := parts[i+1].(string)
		if !ok {
			return fmt.Errorf("invalid entry in expired batch: %#v %#v", parts[i], parts[i+1])
		}
		if tag == "sleep" {
			sleepSecs, ok = parts[i].(int64)
			if !ok {
				return fmt.Errorf("invalid sleep in expired batch: %#v", parts[i])
			}
			gotSleep = true
			continue
		}
		disposition, ok := parts[i].(string)
		if !ok {
			return fmt.Errorf("invalid disposition in expired batch: %#v", parts[i])
		}
		e.Log.Warn("Claim expired",
			zap.String("job_id", tag), zap.String("disposition", disposition))
		if e.Callback != nil {
			if err := e.Callback(ctx, tag, disposition); err != nil {
				return fmt.Errorf("expire callback failed: %w", err)
			}
		}
	}
	if !gotSleep {
		return fmt.Errorf("missing sleep in expired batch")
	}
	// Sleep until the next expiration.
	var sleepDur time.Duration
	if len(parts) <= 2 && sleepSecs < 0 {
		sleepDur = e.Opts.ExpireEmptyBackoff
	} else if sleepSecs > 0 {
		sleepDur = time.Duration(sleepSecs) * time.Second
	}
	sleepTimer := time.NewTimer(sleepDur)
	defer sleepTimer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-sleepTimer.C:
		return nil
	}
}
