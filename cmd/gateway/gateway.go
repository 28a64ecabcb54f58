package gateway

import (
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.aavaz.network/pulse/cmd/providers"
	"go.aavaz.network/pulse/pkg/cache"
	"go.aavaz.network/pulse/pkg/counters"
	"go.aavaz.network/pulse/pkg/engage"
	"go.aavaz.network/pulse/pkg/feeds"
	"go.aavaz.network/pulse/pkg/gate"
	"go.aavaz.network/pulse/pkg/metrics"
	"go.aavaz.network/pulse/pkg/notify"
	"go.aavaz.network/pulse/pkg/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Cmd = cobra.Command{
	Use:   "gateway",
	Short: "Run the public HTTP gateway.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(fx.Invoke(Run))
		app.Run()
	},
}

// Gateway config keys.
const (
	ConfListenNet          = "gateway.listen_net"
	ConfListen             = "gateway.listen"
	ConfRateTarget         = "gateway.rate"
	ConfRateWindow         = "gateway.rate_window"
	ConfNotificationsLimit = "gateway.notifications_limit"
)

func init() {
	viper.SetDefault(ConfListenNet, "tcp")
	viper.SetDefault(ConfListen, ":8080")
	viper.SetDefault(ConfRateTarget, 10.0)
	viper.SetDefault(ConfRateWindow, uint(10))
	viper.SetDefault(ConfNotificationsLimit, 100)
}

type gatewayIn struct {
	fx.In

	Lifecycle         fx.Lifecycle
	Cache             *cache.Cache
	Store             *store.Store
	Config            *feeds.Config
	FeedQueue         *providers.FeedQueue
	NotificationQueue *providers.NotificationQueue
}

// Run wires the gate, the like-toggle path and the notification read path
// into one HTTP surface.
func Run(log *zap.Logger, inputs gatewayIn) error {
	g := &gate.Gate{
		Cache:    inputs.Cache,
		Config:   inputs.Config,
		Producer: inputs.FeedQueue.Producer,
		Log:      log.Named("gate"),
		ObserveRead: func(result string) {
			metrics.FeedReadsTotal.WithLabelValues(result).Inc()
		},
	}
	eng := &engage.Service{
		Store:         inputs.Store,
		Buffer:        &counters.Buffer{Cache: inputs.Cache},
		Cache:         inputs.Cache,
		Notifications: inputs.NotificationQueue.Producer,
		Log:           log.Named("engage"),
	}
	reader := &notify.Reader{
		Cache: inputs.Cache,
		Store: inputs.Store,
		Limit: viper.GetInt(ConfNotificationsLimit),
	}
	srv, err := gate.NewServer(g, eng, reader, log.Named("http"))
	if err != nil {
		return err
	}
	srv.RateTarget = float32(viper.GetFloat64(ConfRateTarget))
	srv.RateWindow = viper.GetUint(ConfRateWindow)
	sock := providers.MustListen(log,
		viper.GetString(ConfListenNet), viper.GetString(ConfListen))
	providers.LifecycleServe(log, inputs.Lifecycle, sock,
		&http.Server{Handler: srv.Router()})
	return nil
}
