package main

import (
	"github.com/spf13/cobra"

	"github.com/webnovel-tools/enhancer/internal/api"
	"github.com/webnovel-tools/enhancer/internal/faults"
	"github.com/webnovel-tools/enhancer/internal/providers"
	"github.com/webnovel-tools/enhancer/internal/server"
	"github.com/webnovel-tools/enhancer/internal/session"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running enhancer server via HTTP.

These commands require a running server (enhancer serve).
Use --server to specify a custom server URL.

Examples:
  enhancer api status          # Progress of the active session
  enhancer api availability    # Cached model host status
  enhancer api terminate       # Abort all in-flight requests
  enhancer api errors          # Recent classified failures`,
}

var apiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active or latest session",
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap session.Snapshot
		if err := api.NewClient(serverURL).Get(cmd.Context(), "/session", &snap); err != nil {
			return err
		}
		return api.Output(snap)
	},
}

var apiAvailabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Show model host availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status providers.AvailabilityStatus
		if err := api.NewClient(serverURL).Get(cmd.Context(), "/availability", &status); err != nil {
			return err
		}
		return api.Output(status)
	},
}

var apiTerminateCmd = &cobra.Command{
	Use:   "terminate",
	Short: "Abort all in-flight model requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp server.TerminateResponse
		if err := api.NewClient(serverURL).Post(cmd.Context(), "/terminate", nil, &resp); err != nil {
			return err
		}
		return api.Output(resp)
	},
}

var apiErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show recent classified failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		var history []faults.Record
		if err := api.NewClient(serverURL).Get(cmd.Context(), "/errors", &history); err != nil {
			return err
		}
		return api.Output(history)
	},
}

func init() {
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://127.0.0.1:8384", "URL of the running enhancer server",
	)
	apiCmd.AddCommand(apiStatusCmd, apiAvailabilityCmd, apiTerminateCmd, apiErrorsCmd)

	rootCmd.AddCommand(apiCmd)
}
