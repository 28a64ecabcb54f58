package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.aavaz.network/pulse/pkg/jobqueue"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap/zaptest"
)

type memNotifications struct {
	records []*types.Notification
}

func (m *memNotifications) InsertNotification(_ context.Context, n *types.Notification) error {
	n.ID = int64(len(m.records) + 1)
	m.records = append(m.records, n)
	return nil
}

func notificationJob(t *testing.T, job *types.NotificationJob) *jobqueue.Job {
	payload, err := job.Marshal()
	require.NoError(t, err)
	return &jobqueue.Job{ID: "n1", Payload: payload}
}

func TestNotifyWorker(t *testing.T) {
	now := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	mem := &memNotifications{}
	worker := &Worker{
		Store: mem,
		Log:   zaptest.NewLogger(t),
		Now:   func() time.Time { return now },
	}

	err := worker.HandleJob(context.Background(), notificationJob(t, &types.NotificationJob{
		RecipientID: 2,
		ActorID:     7,
		Event:       types.EventLike,
		PostID:      42,
	}))
	require.NoError(t, err)
	require.Len(t, mem.records, 1)
	record := mem.records[0]
	assert.Equal(t, int64(2), record.RecipientID)
	assert.Equal(t, int64(7), record.ActorID)
	assert.Equal(t, types.EventLike, record.Event)
	assert.Equal(t, int64(42), record.PostID)
	assert.False(t, record.Read)
	assert.Equal(t, now, record.CreatedAt)
}

func TestNotifyWorkerSuppressesSelfActions(t *testing.T) {
	mem := &memNotifications{}
	worker := &Worker{Store: mem, Log: zaptest.NewLogger(t)}

	// Liking your own post notifies nobody, and the job still succeeds.
	err := worker.HandleJob(context.Background(), notificationJob(t, &types.NotificationJob{
		RecipientID: 7,
		ActorID:     7,
		Event:       types.EventLike,
		PostID:      42,
	}))
	require.NoError(t, err)
	assert.Empty(t, mem.records)
}

func TestNotifyWorkerDropsBadJobs(t *testing.T) {
	mem := &memNotifications{}
	worker := &Worker{Store: mem, Log: zaptest.NewLogger(t)}
	ctx := context.Background()

	err := worker.HandleJob(ctx, &jobqueue.Job{ID: "x", Payload: []byte("not json")})
	assert.ErrorIs(t, err, jobqueue.ErrDropJob)

	// Missing actor.
	err = worker.HandleJob(ctx, notificationJob(t, &types.NotificationJob{
		RecipientID: 2,
		Event:       types.EventLike,
	}))
	assert.ErrorIs(t, err, jobqueue.ErrDropJob)

	// Unknown event type.
	err = worker.HandleJob(ctx, notificationJob(t, &types.NotificationJob{
		RecipientID: 2,
		ActorID:     7,
		Event:       "poke",
	}))
	assert.ErrorIs(t, err, jobqueue.ErrDropJob)

	assert.Empty(t, mem.records)
}
