package migrate

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.aavaz.network/pulse/cmd/providers"
	"go.aavaz.network/pulse/pkg/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Cmd = cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables.",
	Args:  cobra.NoArgs,
	Run:   providers.NewCmd(Run),
}

// Run creates all tables and exits.
func Run(log *zap.Logger, shutdown fx.Shutdowner, s *store.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.CreateTables(ctx); err != nil {
		return err
	}
	log.Info("Tables created")
	return shutdown.Shutdown()
}
