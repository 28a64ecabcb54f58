package feeds

import (
	"context"
	"errors"
	"fmt"

	"go.aavaz.network/pulse/pkg/jobqueue"
	"go.aavaz.network/pulse/pkg/store"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap"
)

// ErrUnknownFeedType gets raised for feed types this deployment cannot build.
var ErrUnknownFeedType = errors.New("unknown feed type")

// UserSource resolves the subject user of a feed job.
type UserSource interface {
	GetUser(ctx context.Context, userID int64) (*types.User, error)
}

// Worker is the feed-generation job handler.
//
// Malformed payloads and vanished users are permanent failures and drop the
// job; store or cache trouble is transient and relies on queue redelivery.
type Worker struct {
	Generator *Generator
	Users     UserSource
	Log       *zap.Logger
}

var _ jobqueue.Handler = (*Worker)(nil)

// HandleJob materializes the feed(s) a job asks for.
func (w *Worker) HandleJob(ctx context.Context, job *jobqueue.Job) error {
	feedJob, err := types.UnmarshalFeedJob(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: %s", jobqueue.ErrDropJob, err)
	}
	if feedJob.Page < 0 || !feedJob.Type.Valid() {
		return fmt.Errorf("%w: bad feed job: page=%d type=%q",
			jobqueue.ErrDropJob, feedJob.Page, feedJob.Type)
	}
	user, err := w.Users.GetUser(ctx, feedJob.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", jobqueue.ErrDropJob, err)
	} else if err != nil {
		return fmt.Errorf("resolve user %d: %w", feedJob.UserID, err)
	}
	if err := w.Generator.Generate(ctx, user, feedJob.Type, feedJob.Page); err != nil {
		if errors.Is(err, ErrUnknownFeedType) {
			return fmt.Errorf("%w: %s", jobqueue.ErrDropJob, err)
		}
		return err
	}
	return nil
}
