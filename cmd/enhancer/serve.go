package main

import (
	"github.com/spf13/cobra"

	"github.com/webnovel-tools/enhancer/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enhancer server",
	Long: `Start the enhancer HTTP server.

The server provides:
  - GET  /health       - Server health check
  - GET  /availability - Cached model host status
  - POST /enhance      - Run an enhancement session over posted text
  - POST /terminate    - Abort all in-flight model requests
  - GET  /session      - Progress of the active or latest session
  - GET  /errors       - Recent classified failures

Examples:
  enhancer serve                    # Start on default port 8384
  enhancer serve --port 3000        # Start on custom port
  enhancer serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline()
		if err != nil {
			return err
		}

		p.configMgr.WatchConfig()

		srv, err := server.New(server.Config{
			Host:         serveHost,
			Port:         servePort,
			Orchestrator: p.orchestrator,
			Gateway:      p.gateway,
			Notifier:     p.notifier,
			MaxChunkSize: p.configMgr.Get().Enhancement.MaxChunkSize,
			Logger:       p.logger,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown.
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8384", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
