package providers

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RunLoops runs a set of long-lived worker loops on the fx lifecycle.
// Any loop exiting for a reason other than context cancellation takes the
// process down.
func RunLoops(
	log *zap.Logger,
	lc fx.Lifecycle,
	shutdown fx.Shutdowner,
	loops ...func(ctx context.Context) error,
) {
	innerCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			for _, loop := range loops {
				loop := loop
				go func() {
					err := loop(innerCtx)
					if err != nil && !errors.Is(err, context.Canceled) {
						log.Error("Worker loop failed", zap.Error(err))
						if err := shutdown.Shutdown(); err != nil {
							log.Fatal("Failed to shut down", zap.Error(err))
						}
					}
				}()
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
}
