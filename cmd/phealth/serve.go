package main

import (
	"os/signal"
	"syscall"

	"github.com/pipehealth/pipehealth-go/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the outlook HTTP server",
	Long: `Serves weighted outlooks over HTTP. Endpoints:

  GET /api/v1/outlook   computed outlook for the calling user
  GET /healthz          liveness probe`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	opts := server.Options{
		Addr:           cfg.Server.Addr,
		RequestsPerSec: cfg.Server.RequestsPerSec,
		Burst:          cfg.Server.Burst,
	}
	if serveAddr != "" {
		opts.Addr = serveAddr
	}

	srv := server.New(a.outlook, logger, opts)
	return srv.Run(ctx)
}
