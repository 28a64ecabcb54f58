package allinone

import (
	"github.com/spf13/cobra"
	"go.aavaz.network/pulse/cmd/feedworker"
	"go.aavaz.network/pulse/cmd/flusher"
	"go.aavaz.network/pulse/cmd/gateway"
	"go.aavaz.network/pulse/cmd/notifyworker"
	"go.aavaz.network/pulse/cmd/providers"
	"go.uber.org/fx"
)

var Cmd = cobra.Command{
	Use:   "all-in-one",
	Short: "Run all-in-one stack.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(opts...)
		app.Run()
	},
}

var opts = []fx.Option{
	// gateway
	fx.Invoke(gateway.Run),
	// feed-worker
	fx.Invoke(feedworker.Run),
	// notify-worker
	fx.Invoke(notifyworker.Run),
	// flusher
	fx.Invoke(flusher.Run),
	// shared metrics listener
	fx.Invoke(providers.ListenMetrics),
}
