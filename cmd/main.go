package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.aavaz.network/pulse/cmd/allinone"
	"go.aavaz.network/pulse/cmd/feedworker"
	"go.aavaz.network/pulse/cmd/flusher"
	"go.aavaz.network/pulse/cmd/gateway"
	"go.aavaz.network/pulse/cmd/migrate"
	"go.aavaz.network/pulse/cmd/notifyworker"
	"go.aavaz.network/pulse/cmd/providers"
	"go.uber.org/zap"
)

var rootCmd = cobra.Command{
	Use:   "pulse",
	Short: "aavaz/pulse feed and engagement engine",

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var logConfig zap.Config
		if devMode {
			logConfig = zap.NewDevelopmentConfig()
		} else {
			logConfig = zap.NewProductionConfig()
		}
		log, err := logConfig.Build()
		if err != nil {
			panic("failed to build logger: " + err.Error())
		}
		providers.Log = log
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				log.Fatal("Failed to read config", zap.Error(err))
			}
		}
	},
}

var devMode bool
var configFile string

func init() {
	persistentFlags := rootCmd.PersistentFlags()
	persistentFlags.BoolVar(&devMode, "dev", false, "Dev mode")
	persistentFlags.StringVar(&configFile, "config", "", "Config file")

	viper.SetEnvPrefix("pulse")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		&allinone.Cmd,
		&feedworker.Cmd,
		&flusher.Cmd,
		&gateway.Cmd,
		&migrate.Cmd,
		&notifyworker.Cmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
	}
}
