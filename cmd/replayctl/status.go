package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var health struct {
			Status        string `json:"status"`
			Version       string `json:"version"`
			Driver        string `json:"driver"`
			SessionActive bool   `json:"session_active"`
			Applications  int    `json:"applications"`
			StreamClients int    `json:"stream_clients"`
		}
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetResult(&health).
			Get("/health")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		fmt.Printf("replayd %s: %s\n", health.Version, health.Status)
		fmt.Printf("  driver:         %s\n", health.Driver)
		fmt.Printf("  session active: %v\n", health.SessionActive)
		fmt.Printf("  applications:   %d\n", health.Applications)
		fmt.Printf("  stream clients: %d\n", health.StreamClients)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
