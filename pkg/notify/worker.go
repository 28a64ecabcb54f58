// Package notify persists engagement notifications behind the job queue,
// decoupling notification writes from the request path.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.aavaz.network/pulse/pkg/jobqueue"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap"
)

// NotificationStore persists notification records.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *types.Notification) error
}

// Worker is the notification fan-out job handler.
//
// Persistence is asynchronous relative to the cache invalidation done by the
// triggering action, so a freshly repopulated notification cache can briefly
// miss the newest record. That window is bounded by queue latency and is an
// accepted property, not something the worker compensates for.
type Worker struct {
	Store NotificationStore
	Log   *zap.Logger

	// Now overrides the clock (tests). Nil means time.Now.
	Now func() time.Time
}

var _ jobqueue.Handler = (*Worker)(nil)

func validEvent(event types.EventType) bool {
	switch event {
	case types.EventLike, types.EventComment, types.EventFollow:
		return true
	}
	return false
}

// HandleJob persists one notification record with read=false.
// Self-actions (recipient == actor) are discarded silently.
func (w *Worker) HandleJob(ctx context.Context, job *jobqueue.Job) error {
	notificationJob, err := types.UnmarshalNotificationJob(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: %s", jobqueue.ErrDropJob, err)
	}
	if notificationJob.RecipientID == 0 || notificationJob.ActorID == 0 || !validEvent(notificationJob.Event) {
		return fmt.Errorf("%w: bad notification job: %+v", jobqueue.ErrDropJob, notificationJob)
	}
	if notificationJob.RecipientID == notificationJob.ActorID {
		// No self-notifications.
		return nil
	}
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	record := &types.Notification{
		RecipientID: notificationJob.RecipientID,
		ActorID:     notificationJob.ActorID,
		Event:       notificationJob.Event,
		PostID:      notificationJob.PostID,
		CommentID:   notificationJob.CommentID,
		Read:        false,
		CreatedAt:   now,
	}
	if err := w.Store.InsertNotification(ctx, record); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	w.Log.Debug("Persisted notification",
		zap.Int64("recipient", record.RecipientID),
		zap.Int64("actor", record.ActorID),
		zap.String("event", string(record.Event)))
	return nil
}
