package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hustlexp/hustlexp-core/internal/config"
	"github.com/hustlexp/hustlexp-core/internal/di"
	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/rpcedge"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC edge server",
	Long:  `Start hustlexpd's gRPC edge server, fronting the task/escrow/trust/dispute/ledger engines.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd, args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func loadConfig() (*config.Config, error) {
	paths := config.DefaultConfigPaths()
	if configFile != "" {
		paths.Main = configFile
	}
	return config.LoadConfig(paths)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	facade, err := provider.BuildFacade()
	if err != nil {
		return fmt.Errorf("build facade: %w", err)
	}

	srv, err := rpcedge.NewServer(&rpcedge.ServerConfig{
		Address:        cfg.Server.Address,
		MaxRecvMsgSize: cfg.Server.MaxRecvMsgSize,
		MaxSendMsgSize: cfg.Server.MaxSendMsgSize,
	}, facade)
	if err != nil {
		return fmt.Errorf("create rpc server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info("serving", "address", cfg.Server.Address)
	select {
	case <-ctx.Done():
		log.Info("shutting down")
		srv.Stop(context.Background())
		return nil
	case err := <-errCh:
		return err
	}
}
