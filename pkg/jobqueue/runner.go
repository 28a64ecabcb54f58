package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDropJob is returned (or wrapped) by handlers to signal a permanent
// logical failure: the job is acknowledged and dropped without retry.
var ErrDropJob = errors.New("drop job")

// Handler processes one job delivery.
// Returning nil acks the job. Returning an error wrapping ErrDropJob acks
// and drops it. Any other error nacks it for redelivery.
type Handler interface {
	HandleJob(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *Job) error

// HandleJob calls f.
func (f HandlerFunc) HandleJob(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// Runner is a competing-consumer loop on one topic.
// Multiple runners may process the same topic across processes.
type Runner struct {
	// Required components
	Consumers *Consumers
	Handler   Handler
	Log       *zap.Logger
	// Optional identity, defaults to hostname + random suffix.
	Claimer string
	// Optional hook counting settled jobs by result ("ok", "dropped", "failed").
	Observe func(result string)
}

func (r *Runner) claimer() string {
	if r.Claimer != "" {
		return r.Claimer
	}
	host, err := os.Hostname()
	if err != nil {
		host = "pulse"
	}
	r.Claimer = host + "-" + uuid.NewString()[:8]
	return r.Claimer
}

// Run claims and processes jobs until the context is canceled.
// While the topic is empty the poll interval backs off exponentially and
// resets as soon as a claim succeeds.
func (r *Runner) Run(ctx context.Context) error {
	claimer := r.claimer()
	opts := r.Consumers.Opts
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.EmptyBackoffMin
	bo.MaxInterval = opts.EmptyBackoffMax
	bo.MaxElapsedTime = 0 // never stop
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		jobs, err := r.Consumers.ClaimJobs(ctx, claimer, opts.ClaimBatch)
		if err != nil {
			return fmt.Errorf("claim failed: %w", err)
		}
		if len(jobs) == 0 {
			sleepTimer := time.NewTimer(bo.NextBackOff())
			select {
			case <-ctx.Done():
				sleepTimer.Stop()
				return ctx.Err()
			case <-sleepTimer.C:
			}
			continue
		}
		bo.Reset()
		for i := range jobs {
			r.process(ctx, claimer, &jobs[i])
		}
	}
}

func (r *Runner) process(ctx context.Context, claimer string, job *Job) {
	opts := r.Consumers.Opts
	handlerCtx, cancel := context.WithTimeout(ctx, opts.HandlerTimeout)
	err := r.Handler.HandleJob(handlerCtx, job)
	cancel()
	switch {
	case err == nil:
		r.settle(ctx, "ok", claimer, job, r.Consumers.Ack)
	case errors.Is(err, ErrDropJob):
		r.Log.Warn("Dropping job",
			zap.String("job_id", job.ID),
			zap.ByteString("payload", job.Payload),
			zap.Error(err))
		r.settle(ctx, "dropped", claimer, job, r.Consumers.Ack)
	default:
		r.Log.Error("Job failed",
			zap.String("job_id", job.ID),
			zap.ByteString("payload", job.Payload),
			zap.Error(err))
		r.settle(ctx, "failed", claimer, job, r.Consumers.Nack)
	}
}

func (r *Runner) settle(
	ctx context.Context, result string, claimer string, job *Job,
	op func(context.Context, string, []string) error,
) {
	if err := op(ctx, claimer, []string{job.ID}); err != nil {
		if errors.Is(err, ErrClaimedByOther) {
			// Claim expired mid-handling and was redelivered. The other
			// delivery owns the job now; idempotent handlers make this safe.
			r.Log.Warn("Lost claim while handling job", zap.String("job_id", job.ID))
		} else {
			r.Log.Error("Failed to settle job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}
	if r.Observe != nil {
		r.Observe(result)
	}
}
