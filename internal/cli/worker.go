package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hustlexp/hustlexp-core/internal/di"
	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the outbox dispatcher",
	Long:  `Start hustlexpd's outbox worker: claims undispatched events and applies their downstream effects (trust penalties, user notifications).`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.SetDefault(logging.New(&logging.Config{Level: cfg.Logging.Level, TimeFormat: cfg.Logging.TimeFormat}))
	log := logging.GetDefault().Component("cli")

	container := di.New()
	provider := di.NewProvider(container, cfg)
	if err := provider.RegisterAll(); err != nil {
		return fmt.Errorf("register services: %w", err)
	}

	dispatcherVal, err := container.Get(di.ServiceDispatcher)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}
	dispatcher := dispatcherVal.(*outbox.Dispatcher)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("outbox worker starting")
	err = dispatcher.Run(ctx)
	if err != nil && ctx.Err() != nil {
		log.Info("outbox worker stopped")
		return nil
	}
	return err
}
