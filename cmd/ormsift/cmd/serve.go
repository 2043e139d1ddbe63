package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ormsift/ormsift/internal/adapters/state"
	"github.com/ormsift/ormsift/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline report API",
	Long:  "Serve a read-only HTTP API over the persisted snapshots and workflow log.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	snaps, logStore, err := openStores(cfg, uuid.NewString())
	if err != nil {
		return err
	}
	defer func() { _ = state.CloseLogStore(logStore) }()

	webCfg := web.DefaultConfig()
	if cfg.Web.Addr != "" {
		webCfg.Addr = cfg.Web.Addr
	}
	if serveAddr != "" {
		webCfg.Addr = serveAddr
	}

	srv := web.New(webCfg, snaps, logStore, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down report server")
		return srv.Shutdown(context.Background())
	}
}
