package feedworker

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.aavaz.network/pulse/cmd/providers"
	"go.aavaz.network/pulse/pkg/authorcache"
	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/feeds"
	"go.aavaz.network/pulse/pkg/jobqueue"
	"go.aavaz.network/pulse/pkg/metrics"
	"go.aavaz.network/pulse/pkg/store"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Cmd = cobra.Command{
	Use:   "feed-worker",
	Short: "Run feed generation workers.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(fx.Invoke(Run, providers.ListenMetrics))
		app.Run()
	},
}

// Feed worker config keys.
const (
	ConfRunners        = "feed_worker.runners"
	ConfAuthorCacheTTL = "feed_worker.author_cache.ttl"
	ConfAuthorCacheLen = "feed_worker.author_cache.size"
)

func init() {
	viper.SetDefault(ConfRunners, 2)
	viper.SetDefault(ConfAuthorCacheTTL, 5*time.Minute)
	viper.SetDefault(ConfAuthorCacheLen, 4096)
}

type workerIn struct {
	fx.In

	Lifecycle fx.Lifecycle
	Shutdown  fx.Shutdowner
	Redis     *redis.Client
	Cache     *cache.Cache
	Store     *store.Store
	Config    *feeds.Config
	FeedQueue *providers.FeedQueue
}

// Run consumes the feed-generation topic and materializes feeds.
func Run(log *zap.Logger, inputs workerIn) error {
	authors, err := authorcache.New(inputs.Store,
		viper.GetInt(ConfAuthorCacheLen),
		viper.GetDuration(ConfAuthorCacheTTL))
	if err != nil {
		return err
	}
	gen := &feeds.Generator{
		Posts:   inputs.Store,
		Authors: authors,
		Cache:   inputs.Cache,
		Config:  inputs.Config,
		Log:     log.Named("feeds"),
		ObserveBuild: func(feedType types.FeedType, d time.Duration) {
			metrics.FeedBuildSeconds.WithLabelValues(string(feedType)).Observe(d.Seconds())
		},
	}
	worker := &feeds.Worker{
		Generator: gen,
		Users:     inputs.Store,
		Log:       log.Named("feeds"),
	}
	expirer := &jobqueue.ExpirationWorker{
		Log:   log.Named("expire"),
		Redis: inputs.Redis,
		Keys:  inputs.FeedQueue.Keys,
		Opts:  inputs.FeedQueue.Opts,
		Callback: func(_ context.Context, _ string, disposition string) error {
			metrics.JobsExpiredTotal.WithLabelValues(jobqueue.TopicFeedGeneration, disposition).Inc()
			return nil
		},
	}
	loops := []func(ctx context.Context) error{expirer.Run}
	for i := 0; i < viper.GetInt(ConfRunners); i++ {
		runner := &jobqueue.Runner{
			Consumers: inputs.FeedQueue.Consumers,
			Handler:   worker,
			Log:       log.Named("runner"),
			Observe: func(result string) {
				metrics.JobsTotal.WithLabelValues(jobqueue.TopicFeedGeneration, result).Inc()
			},
		}
		loops = append(loops, runner.Run)
	}
	providers.RunLoops(log, inputs.Lifecycle, inputs.Shutdown, loops...)
	return nil
}
