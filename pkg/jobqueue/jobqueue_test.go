package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.aavaz.network/pulse/pkg/redistest"
	"go.uber.org/zap/zaptest"
)

func TestQueueLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	keys := KeysForTopic("test")
	opts := DefaultOptions
	producer := &Producer{Redis: rd.Client, Keys: keys}
	consumers := &Consumers{Redis: rd.Client, Keys: keys, Opts: opts}

	// Enqueue with a deterministic ID.
	id, err := producer.Enqueue(ctx, "job1", []byte("payload1"))
	require.NoError(t, err)
	assert.Equal(t, "job1", id)
	n, err := producer.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Duplicate enqueues coalesce on the job ID.
	_, err = producer.Enqueue(ctx, "job1", []byte("payload2"))
	require.NoError(t, err)
	n, err = producer.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Claim moves the job out of pending.
	jobs, err := consumers.ClaimJobs(ctx, "w1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job1", jobs[0].ID)
	assert.Equal(t, []byte("payload2"), jobs[0].Payload)
	n, err = producer.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A foreign claimer cannot settle the claim.
	err = consumers.Ack(ctx, "w2", []string{"job1"})
	assert.ErrorIs(t, err, ErrClaimedByOther)

	// Ack removes the job entirely.
	require.NoError(t, consumers.Ack(ctx, "w1", []string{"job1"}))
	payloads, err := rd.Client.HGetAll(ctx, keys.PayloadHash).Result()
	require.NoError(t, err)
	assert.Empty(t, payloads)

	// An empty topic claims nothing.
	jobs, err = consumers.ClaimJobs(ctx, "w1", 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestNackDeadLetter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	keys := KeysForTopic("test")
	opts := DefaultOptions
	opts.MaxAttempts = 2
	producer := &Producer{Redis: rd.Client, Keys: keys}
	consumers := &Consumers{Redis: rd.Client, Keys: keys, Opts: opts}

	_, err := producer.Enqueue(ctx, "job1", []byte("payload"))
	require.NoError(t, err)

	// First attempt: nack returns the job to pending.
	jobs, err := consumers.ClaimJobs(ctx, "w1", 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, consumers.Nack(ctx, "w1", []string{"job1"}))
	n, err := producer.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Second attempt hits MaxAttempts: nack dead-letters.
	jobs, err = consumers.ClaimJobs(ctx, "w1", 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, consumers.Nack(ctx, "w1", []string{"job1"}))
	n, err = producer.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	dead, err := producer.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"job1": "payload"}, dead)
}

func TestExpireRedelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	keys := KeysForTopic("test")
	opts := DefaultOptions
	opts.ClaimTTL = 0 // claims expire immediately
	producer := &Producer{Redis: rd.Client, Keys: keys}
	consumers := &Consumers{Redis: rd.Client, Keys: keys, Opts: opts}

	// Job IDs may contain colons; the expire entry parser must cope.
	_, err := producer.Enqueue(ctx, "feed:7:main:0", []byte("payload"))
	require.NoError(t, err)
	jobs, err := consumers.ClaimJobs(ctx, "w1", 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	var mu sync.Mutex
	expired := make(map[string]string)
	worker := &ExpirationWorker{
		Log:   zaptest.NewLogger(t),
		Redis: rd.Client,
		Keys:  keys,
		Opts:  opts,
		Callback: func(_ context.Context, jobID string, disposition string) error {
			mu.Lock()
			defer mu.Unlock()
			expired[jobID] = disposition
			return nil
		},
	}
	require.NoError(t, worker.step(ctx))
	assert.Equal(t, map[string]string{"feed:7:main:0": "requeue"}, expired)
	n, err := producer.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// The stale claimer lost the job.
	err = consumers.Ack(ctx, "w1", []string{"feed:7:main:0"})
	assert.ErrorIs(t, err, ErrClaimedByOther)
}

func TestExpireDeadLetter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	keys := KeysForTopic("test")
	opts := DefaultOptions
	opts.ClaimTTL = 0
	opts.MaxAttempts = 1
	producer := &Producer{Redis: rd.Client, Keys: keys}
	consumers := &Consumers{Redis: rd.Client, Keys: keys, Opts: opts}

	_, err := producer.Enqueue(ctx, "job1", []byte("payload"))
	require.NoError(t, err)
	_, err = consumers.ClaimJobs(ctx, "w1", 1)
	require.NoError(t, err)

	expired := make(map[string]string)
	worker := &ExpirationWorker{
		Log:   zaptest.NewLogger(t),
		Redis: rd.Client,
		Keys:  keys,
		Opts:  opts,
		Callback: func(_ context.Context, jobID string, disposition string) error {
			expired[jobID] = disposition
			return nil
		},
	}
	require.NoError(t, worker.step(ctx))
	assert.Equal(t, map[string]string{"job1": "dead"}, expired)
	dead, err := producer.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"job1": "payload"}, dead)
}

func TestRunner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	keys := KeysForTopic("test")
	opts := DefaultOptions
	producer := &Producer{Redis: rd.Client, Keys: keys}
	consumers := &Consumers{Redis: rd.Client, Keys: keys, Opts: opts}

	_, err := producer.Enqueue(ctx, "ok", []byte("a"))
	require.NoError(t, err)
	_, err = producer.Enqueue(ctx, "poison", []byte("b"))
	require.NoError(t, err)

	results := make(chan string, 4)
	runner := &Runner{
		Consumers: consumers,
		Handler: HandlerFunc(func(_ context.Context, job *Job) error {
			if job.ID == "poison" {
				return ErrDropJob
			}
			return nil
		}),
		Log:     zaptest.NewLogger(t),
		Observe: func(result string) { results <- result },
	}
	runCtx, stopRunner := context.WithCancel(ctx)
	defer stopRunner()
	runDone := make(chan error, 1)
	go func() { runDone <- runner.Run(runCtx) }()

	settled := make(map[string]int)
	for i := 0; i < 2; i++ {
		select {
		case result := <-results:
			settled[result]++
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs to settle")
		}
	}
	assert.Equal(t, map[string]int{"ok": 1, "dropped": 1}, settled)

	stopRunner()
	require.ErrorIs(t, <-runDone, context.Canceled)

	// Both jobs are gone for good.
	n, err := producer.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	payloads, err := rd.Client.HGetAll(ctx, keys.PayloadHash).Result()
	require.NoError(t, err)
	assert.Empty(t, payloads)

	dead, err := producer.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestRunnerNack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rd := redistest.NewRedis(ctx, t)
	defer rd.Close(t)

	keys := KeysForTopic("test")
	opts := DefaultOptions
	opts.MaxAttempts = 2
	producer := &Producer{Redis: rd.Client, Keys: keys}
	consumers := &Consumers{Redis: rd.Client, Keys: keys, Opts: opts}

	_, err := producer.Enqueue(ctx, "flaky", []byte("a"))
	require.NoError(t, err)

	results := make(chan string, 4)
	runner := &Runner{
		Consumers: consumers,
		Handler: HandlerFunc(func(_ context.Context, _ *Job) error {
			return errors.New("transient")
		}),
		Log:     zaptest.NewLogger(t),
		Observe: func(result string) { results <- result },
	}
	runCtx, stopRunner := context.WithCancel(ctx)
	defer stopRunner()
	go func() { _ = runner.Run(runCtx) }()

	// Two failed attempts, then the job is dead-lettered.
	for i := 0; i < 2; i++ {
		select {
		case result := <-results:
			assert.Equal(t, "failed", result)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for attempts")
		}
	}
	require.Eventually(t, func() bool {
		dead, err := producer.DeadLetters(ctx)
		require.NoError(t, err)
		return len(dead) == 1
	}, 5*time.Second, 50*time.Millisecond)
}
