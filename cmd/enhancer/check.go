package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check model host availability",
	Long: `Probe the configured model host and report its status.

Exits non-zero when the host is unreachable or the configured model is
not served.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline()
		if err != nil {
			return err
		}

		cfg := p.configMgr.Get()
		status := p.gateway.Availability(cmd.Context())

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Endpoint: %s\n", cfg.Provider.Endpoint)
		fmt.Fprintf(out, "Model:    %s\n", cfg.Provider.Model)
		if !status.Available {
			fmt.Fprintf(out, "Status:   unavailable (%s)\n", status.Reason)
			return fmt.Errorf("model host unavailable: %s", status.Reason)
		}

		fmt.Fprintf(out, "Status:   available\n")
		if status.Version != "" {
			fmt.Fprintf(out, "Version:  %s\n", status.Version)
		}
		if len(status.Models) > 0 {
			fmt.Fprintf(out, "Models:   %s\n", strings.Join(status.Models, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
