package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/replaykit/replayd/internal/domain/playback"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Replay a scenario file against the active session",
	Long: `Replay a scenario file.

Relative paths resolve under the daemon's scenario directory, so the
file must be readable by replayd, not by this client.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var env struct {
			Report playback.RunReport `json:"report"`
		}
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetBody(map[string]any{"path": args[0]}).
			SetResult(&env).
			Post("/scenarios/run")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		r := env.Report
		fmt.Printf("scenario %s: %d executed, %d failed in %s\n",
			r.ScenarioID, r.Executed, r.Failed,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
