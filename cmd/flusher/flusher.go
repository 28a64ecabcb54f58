package flusher

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.aavaz.network/pulse/cmd/providers"
	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/counters"
	"go.aavaz.network/pulse/pkg/metrics"
	"go.aavaz.network/pulse/pkg/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Cmd = cobra.Command{
	Use:   "flusher",
	Short: "Run the like-counter flush cycle.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(fx.Invoke(Run, providers.ListenMetrics))
		app.Run()
	},
}

// Flusher config keys.
const (
	ConfInterval = "flusher.interval"
	ConfBatch    = "flusher.batch"
)

func init() {
	viper.SetDefault(ConfInterval, counters.DefaultInterval)
	viper.SetDefault(ConfBatch, counters.DefaultBatchSize)
}

type flusherIn struct {
	fx.In

	Lifecycle fx.Lifecycle
	Shutdown  fx.Shutdowner
	Cache     *cache.Cache
	Store     *store.Store
}

// Run drains buffered like deltas into the durable store on an interval.
func Run(log *zap.Logger, inputs flusherIn) {
	fl := &counters.Flusher{
		Buffer:    &counters.Buffer{Cache: inputs.Cache},
		Store:     inputs.Store,
		Log:       log.Named("flusher"),
		Interval:  viper.GetDuration(ConfInterval),
		BatchSize: viper.GetInt(ConfBatch),
		ObserveCycle: func(result string) {
			metrics.FlushCyclesTotal.WithLabelValues(result).Inc()
		},
		ObserveItems: func(flushed int) {
			metrics.FlushItemsTotal.Add(float64(flushed))
		},
	}
	providers.RunLoops(log, inputs.Lifecycle, inputs.Shutdown, fl.Run)
}
