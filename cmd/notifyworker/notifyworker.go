package notifyworker

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.aavaz.network/pulse/cmd/providers"
	"go.aavaz.network/pulse/pkg/jobqueue"
	"go.aavaz.network/pulse/pkg/metrics"
	"go.aavaz.network/pulse/pkg/notify"
	"go.aavaz.network/pulse/pkg/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Cmd = cobra.Command{
	Use:   "notify-worker",
	Short: "Run notification fan-out workers.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(fx.Invoke(Run, providers.ListenMetrics))
		app.Run()
	},
}

// Notify worker config keys.
const (
	ConfRunners = "notify_worker.runners"
)

func init() {
	viper.SetDefault(ConfRunners, 2)
}

type workerIn struct {
	fx.In

	Lifecycle         fx.Lifecycle
	Shutdown          fx.Shutdowner
	Redis             *redis.Client
	Store             *store.Store
	NotificationQueue *providers.NotificationQueue
}

// Run consumes the notification topic and persists notification records.
func Run(log *zap.Logger, inputs workerIn) {
	worker := &notify.Worker{
		Store: inputs.Store,
		Log:   log.Named("notify"),
	}
	expirer := &jobqueue.ExpirationWorker{
		Log:   log.Named("expire"),
		Redis: inputs.Redis,
		Keys:  inputs.NotificationQueue.Keys,
		Opts:  inputs.NotificationQueue.Opts,
		Callback: func(_ context.Context, _ string, disposition string) error {
			metrics.JobsExpiredTotal.WithLabelValues(jobqueue.TopicNotifications, disposition).Inc()
			return nil
		},
	}
	loops := []func(ctx context.Context) error{expirer.Run}
	for i := 0; i < viper.GetInt(ConfRunners); i++ {
		runner := &jobqueue.Runner{
			Consumers: inputs.NotificationQueue.Consumers,
			Handler:   worker,
			Log:       log.Named("runner"),
			Observe: func(result string) {
				metrics.JobsTotal.WithLabelValues(jobqueue.TopicNotifications, result).Inc()
			},
		}
		loops = append(loops, runner.Run)
	}
	providers.RunLoops(log, inputs.Lifecycle, inputs.Shutdown, loops...)
}
