package providers

import (
	"net/http"

	"github.com/spf13/viper"
	"go.aavaz.network/pulse/pkg/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Metrics config keys.
const (
	ConfMetricsNet    = "metrics.net"
	ConfMetricsListen = "metrics.listen"
)

func init() {
	viper.SetDefault(ConfMetricsNet, "tcp")
	viper.SetDefault(ConfMetricsListen, "")
}

// ListenMetrics exposes the Prometheus scrape endpoint on the address from
// config. An empty address disables the listener, which is the default for
// processes that already serve /metrics on their own surface.
func ListenMetrics(log *zap.Logger, lc fx.Lifecycle) {
	addr := viper.GetString(ConfMetricsListen)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	sock := MustListen(log.Named("metrics"), viper.GetString(ConfMetricsNet), addr)
	LifecycleServe(log.Named("metrics"), lc, sock, &http.Server{Handler: mux})
}
