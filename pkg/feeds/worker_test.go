package feeds

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.aavaz.network/pulse/pkg/jobqueue"
	"go.aavaz.network/pulse/pkg/store"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap/zaptest"
)

type stubUsers struct {
	user *types.User
	err  error
}

func (s *stubUsers) GetUser(context.Context, int64) (*types.User, error) {
	return s.user, s.err
}

func TestFeedWorkerDropsBadJobs(t *testing.T) {
	ctx := context.Background()
	worker := &Worker{
		Users: &stubUsers{user: &types.User{ID: 7}},
		Log:   zaptest.NewLogger(t),
	}

	// Malformed payload.
	err := worker.HandleJob(ctx, &jobqueue.Job{ID: "x", Payload: []byte("{")})
	assert.ErrorIs(t, err, jobqueue.ErrDropJob)

	// Negative page.
	job := types.FeedJob{UserID: 7, Page: -1, Type: types.FeedMain}
	payload, err := job.Marshal()
	require.NoError(t, err)
	err = worker.HandleJob(ctx, &jobqueue.Job{ID: job.ID(), Payload: payload})
	assert.ErrorIs(t, err, jobqueue.ErrDropJob)

	// Unknown feed type.
	job = types.FeedJob{UserID: 7, Type: "trending"}
	payload, err = job.Marshal()
	require.NoError(t, err)
	err = worker.HandleJob(ctx, &jobqueue.Job{ID: job.ID(), Payload: payload})
	assert.ErrorIs(t, err, jobqueue.ErrDropJob)
}

func TestFeedWorkerVanishedUser(t *testing.T) {
	worker := &Worker{
		Users: &stubUsers{err: store.ErrNotFound},
		Log:   zaptest.NewLogger(t),
	}
	job := types.FeedJob{UserID: 404, Type: types.FeedMain}
	payload, err := job.Marshal()
	require.NoError(t, err)
	err = worker.HandleJob(context.Background(), &jobqueue.Job{ID: job.ID(), Payload: payload})
	assert.ErrorIs(t, err, jobqueue.ErrDropJob)
}

func TestFeedWorkerTransientUserError(t *testing.T) {
	transient := errors.New("connection reset")
	worker := &Worker{
		Users: &stubUsers{err: transient},
		Log:   zaptest.NewLogger(t),
	}
	job := types.FeedJob{UserID: 7, Type: types.FeedMain}
	payload, err := job.Marshal()
	require.NoError(t, err)
	err = worker.HandleJob(context.Background(), &jobqueue.Job{ID: job.ID(), Payload: payload})
	require.Error(t, err)
	// Transient trouble must not drop the job.
	assert.NotErrorIs(t, err, jobqueue.ErrDropJob)
}
