package providers

import (
	"github.com/spf13/viper"
	"go.aavaz.network/pulse/pkg/feeds"
	"go.uber.org/zap"
)

// Feed config keys.
const (
	ConfFeedsConfigFile = "feeds.config_file"
)

func init() {
	viper.SetDefault(ConfFeedsConfigFile, "")
}

// NewFeedConfig loads the feed profiles from the TOML file in config,
// falling back to the built-in defaults when no file is set.
func NewFeedConfig(log *zap.Logger) (*feeds.Config, error) {
	path := viper.GetString(ConfFeedsConfigFile)
	if path == "" {
		return feeds.DefaultConfig(), nil
	}
	log.Info("Reading feed profiles",
		zap.String(ConfFeedsConfigFile, path))
	return feeds.ReadConfig(path)
}
