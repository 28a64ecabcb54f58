package providers

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Log is the global logger.
var Log *zap.Logger

// Providers holds constructors for shared components.
var Providers = []interface{}{
	// feeds.go
	NewFeedConfig,
	// mysql.go
	NewMySQL,
	NewStore,
	// providers.go
	NewContext,
	// queue.go
	NewFeedQueue,
	NewNotificationQueue,
	// redis.go
	NewRedis,
	NewCache,
}

// NewApp builds an fx app from the shared providers plus per-command options.
func NewApp(opts ...fx.Option) *fx.App {
	baseOpts := []fx.Option{
		fx.Provide(Providers...),
		fx.Supply(Log),
		fx.Logger(zap.NewStdLog(Log)),
	}
	baseOpts = append(baseOpts, opts...)
	return fx.New(baseOpts...)
}

// NewCmd wraps a one-shot invocation in a cobra run function.
func NewCmd(invoke interface{}) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		app := NewApp(
			fx.Supply(cmd),
			fx.Supply(args),
			fx.Invoke(invoke),
		)
		app.Run()
	}
}

// NewContext returns a context canceled when the app shuts down.
func NewContext(lc fx.Lifecycle) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
	return ctx
}
